package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/smolnikov/adminpanel/internal/config"
)

// Login authenticates against the backend and persists the session token
// for both the server and the other CLI commands.
func Login(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	if *email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		*email = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")

	manager, cleanup, err := buildSession(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	user, err := manager.Login(context.Background(), *email, password)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s <%s>", user.Name, user.Email)
	if role := user.Role.Name(); role != "" {
		fmt.Printf(" (%s)", role)
	}
	fmt.Println()
	return nil
}
