package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"time"
)

func (a *App) getStatus() string {
	s := string(a.Mode)
	if a.isUnlocked() {
		s += ", unlocked"
	} else {
		s += ", locked"
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) Root(ctx context.Context) {
	log.Println("Welcome to Lockbox CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := a.client.Ping(pingCtx); err == nil {
		a.setMode(ModeOnline)
	}
	cancel()

	go func() {
		a.StartOnlineStatusWatcher(ctx, 3*time.Second)
	}()

	runREPL(ctx, a, a.getStatus, scanner)
}
