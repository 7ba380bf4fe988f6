package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dvoronkov/lockbox/internal/client/api"
	"github.com/dvoronkov/lockbox/internal/client/config"
	"github.com/dvoronkov/lockbox/internal/client/localdb"
	"github.com/dvoronkov/lockbox/internal/client/vault"
	"github.com/dvoronkov/lockbox/internal/filex"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config *config.Config
	client *api.Client
	vault  vault.Service
	db     *sql.DB
	Mode   Mode
	reader *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	// A relative database path lands in a data subdir next to the binary's
	// working directory, so repeated runs find the same cache.
	dbPath := c.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dir, err := filex.EnsureSubdDir("data")
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(dir, dbPath)
	}

	db, err := localdb.Open(ctx, dbPath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	apiClient := api.NewClient(c.ServerURL, c.RequestTimeout)
	vaultService := vault.NewService(apiClient, db)

	return &App{
		config: c,
		client: apiClient,
		vault:  vaultService,
		db:     db,
		Mode:   ModeOffline,
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		a.vault.Lock()
		_ = a.db.Close()
	}()
	a.Root(ctx)
}

func (a *App) isUnlocked() bool {
	return a.vault.Unlocked()
}

// StartOnlineStatusWatcher probes server reachability on a fixed interval
// and flips the mode accordingly. Unlock uses the mode to decide between the
// server and the local cache.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.client.Ping(pingCtx)
			cancel()

			if err != nil {
				if a.Mode == ModeOnline {
					a.setMode(ModeOffline)
				}
			} else {
				if a.Mode != ModeOnline {
					a.setMode(ModeOnline)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
