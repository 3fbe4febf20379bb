// Package cmd implements the omnigate command line dispatcher.
package cmd

import (
	"context"
	"fmt"
	"strings"
)

const usage = `omnigate is a multi-provider LLM chat completion gateway.

Usage:
  omnigate serve [flags]

Commands:
  serve    Start the gateway HTTP server

Flags:
  -h, --help  Show this help message`

// Execute runs the CLI dispatcher with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return serve(ctx, nil)
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "help", "-h", "--help":
		return printUsage()
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func printUsage() error {
	fmt.Println(strings.TrimSpace(usage))
	return nil
}
