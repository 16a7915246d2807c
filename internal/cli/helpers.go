// Package cli implements the terminal commands for managing the console's
// auth session without starting the server.
package cli

import (
	"fmt"
	"os"

	"github.com/smolnikov/adminpanel/internal/backend"
	"github.com/smolnikov/adminpanel/internal/config"
	"github.com/smolnikov/adminpanel/internal/notify"
	"github.com/smolnikov/adminpanel/internal/session"
	"github.com/smolnikov/adminpanel/internal/state"
	"github.com/smolnikov/adminpanel/internal/tokenstore"
)

// buildSession assembles a session manager over the same state database the
// server uses. The returned cleanup closes the database.
func buildSession(cfg *config.Config) (*session.Manager, func(), error) {
	db, err := state.Open(cfg.State.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state database: %w", err)
	}
	cleanup := func() { _ = db.Close() }

	store, err := tokenstore.New(db.Gorm, tokenstore.Config{
		EncryptionKey: cfg.State.EncryptionKey,
		Passphrase:    cfg.State.Passphrase,
		KeyFilePath:   cfg.State.KeyFilePath,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to set up token store: %w", err)
	}

	api := backend.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	manager := session.NewManager(store, api,
		session.WithNotifier(notify.Terminal{W: os.Stdout}),
	)
	return manager, cleanup, nil
}
