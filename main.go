package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"tagdeck/internal/config"
	"tagdeck/internal/ui/headless"
)

var BuildVersion = "dev"

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opts, err := config.ParseOptions()
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if opts.Library != "" {
		if err := config.ValidateLibraryPath(opts.Library); err != nil {
			fmt.Fprintln(os.Stderr, "invalid --library:", err)
			os.Exit(2)
		}
	}

	headless.Run(rootCtx, BuildVersion, opts)
}
