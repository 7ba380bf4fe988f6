package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isUnlocked() bool
	SetToken(ctx context.Context) error
	InitVault(ctx context.Context) error
	Unlock(ctx context.Context) error
	LockVault(ctx context.Context) error
	Rotate(ctx context.Context) error
	CheckStrength(ctx context.Context) error
	Credentials(ctx context.Context) error
	EncryptValue(ctx context.Context) error
	DecryptValue(ctx context.Context) error
	Upload(ctx context.Context) error
	DownloadURL(ctx context.Context) error
	ClearLocal(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the Lockbox CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Locked vault:
//   - help | token | init | unlock | strength | clear | exit
//
// Unlocked vault:
//   - help | lock | rotate | strength | creds | encrypt | decrypt
//   - upload | download | clear | exit
//
// Any errors returned by command handlers are ignored here; handlers print
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("lockbox %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn("Available commands: lock, rotate, strength, creds, encrypt, decrypt, upload, download, clear, exit")
			} else {
				printlnFn("Available commands: token, init, unlock, strength, clear, exit")
			}

		case "token":
			_ = a.SetToken(ctx)

		case "init":
			_ = a.InitVault(ctx)

		case "unlock":
			_ = a.Unlock(ctx)

		case "lock":
			_ = a.LockVault(ctx)

		case "rotate":
			_ = a.Rotate(ctx)

		case "strength":
			_ = a.CheckStrength(ctx)

		case "creds", "credentials":
			_ = a.Credentials(ctx)

		case "encrypt":
			_ = a.EncryptValue(ctx)

		case "decrypt":
			_ = a.DecryptValue(ctx)

		case "upload":
			_ = a.Upload(ctx)

		case "download":
			_ = a.DownloadURL(ctx)

		case "clear":
			_ = a.ClearLocal(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
