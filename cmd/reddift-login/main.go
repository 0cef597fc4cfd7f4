package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesprial/go-reddift"
	"github.com/jamesprial/go-reddift/internal/loginui"
	"github.com/jamesprial/go-reddift/pkg/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "reddift.toml", "application manifest (.toml, .yaml or .json)")
	debug := flag.Bool("debug", false, "write debug logs to stderr")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := login(ctx, *configPath, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "reddift-login: %v\n", err)
		return 1
	}
	return 0
}

func login(ctx context.Context, configPath string, debug bool) error {
	manifest, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.DiscardHandler)
	if debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	cfg := reddift.ConfigFromManifest(manifest)
	cfg.Logger = logger
	client, err := reddift.NewClient(cfg)
	if err != nil {
		return err
	}

	opts := loginui.Options{Auth: client}
	if loginui.Loopback(manifest.RedirectURI) {
		listenCtx, stop := context.WithCancel(ctx)
		defer stop()
		opts.Redirects, err = loginui.ListenForRedirect(listenCtx, manifest.RedirectURI, logger)
		if err != nil {
			return err
		}
	} else {
		opts.Hint = loginui.PasteHint(manifest.RedirectURIScheme())
	}

	user, err := loginui.Run(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Stored token for /u/%s in %s\n", user, manifest.TokenDB)
	return nil
}
