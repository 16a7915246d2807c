package cli

import (
	"context"
	"fmt"

	"github.com/smolnikov/adminpanel/internal/config"
)

// Whoami verifies the stored token and prints the account behind it.
func Whoami(cfg *config.Config) error {
	manager, cleanup, err := buildSession(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	manager.Initialize(context.Background())

	user := manager.User()
	if user == nil {
		fmt.Println("Not logged in")
		return nil
	}

	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	if role := user.Role.Name(); role != "" {
		fmt.Printf("Role: %s\n", role)
		if perms, known := user.Role.Permissions(); known {
			for _, p := range perms {
				fmt.Printf("  - %s\n", p.Name)
			}
		}
	}
	if manager.IsAdmin() {
		fmt.Println("Administrator access")
	}
	return nil
}
