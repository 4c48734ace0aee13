// Command quill runs the Quill console against the application in the
// current directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dicklesworthstone/quill/internal/app"
	"github.com/Dicklesworthstone/quill/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	cfg, err := config.Load(config.LoadOptions{Root: root})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	a, err := app.New(cfg, app.WithRoot(root))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}
