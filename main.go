package main

import (
	"fmt"
	"log"
	"os"

	"github.com/smolnikov/adminpanel/internal/cli"
	"github.com/smolnikov/adminpanel/internal/config"
	"github.com/smolnikov/adminpanel/internal/entrypoint"
)

// Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	cfg := config.NewConfig()

	if len(os.Args) < 2 {
		entrypoint.Run(cfg, Version)
		return
	}

	switch os.Args[1] {
	case "serve":
		entrypoint.Run(cfg, Version)
	case "login":
		if err := cli.Login(cfg, os.Args[2:]); err != nil {
			log.Fatalf("login failed: %v", err)
		}
	case "logout":
		if err := cli.Logout(cfg); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
	case "whoami":
		if err := cli.Whoami(cfg); err != nil {
			log.Fatalf("whoami failed: %v", err)
		}
	case "version":
		fmt.Printf("adminpanel %s (%s)\n", Version, Commit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: adminpanel [command]

Commands:
  serve     Start the web console (default)
  login     Log in and store the session token
  logout    Clear the stored session token
  whoami    Show the account behind the stored token
  version   Print version information
  help      Show this help`)
}
