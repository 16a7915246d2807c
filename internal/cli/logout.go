package cli

import (
	"context"
	"fmt"

	"github.com/smolnikov/adminpanel/internal/config"
)

// Logout clears the persisted session token.
func Logout(cfg *config.Config) error {
	manager, cleanup, err := buildSession(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	manager.Logout(context.Background())
	fmt.Println("Logged out")
	return nil
}
