// Package cli provides the interactive Lockbox command-line client.
//
// It wires configuration, the local SQLite cache, the server API client, and
// an interactive REPL that supports online and offline operation. Passkey
// ceremonies run in a browser; the CLI accepts the resulting session token
// and drives everything that follows: vault initialization, unlock (online
// or offline), secret phrase rotation, field crypto, and blob URLs.
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
