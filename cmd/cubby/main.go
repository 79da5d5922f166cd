package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cubby/cubby/internal/app"
	"github.com/cubby/cubby/internal/catalog"
	"github.com/cubby/cubby/internal/config"
	"github.com/cubby/cubby/internal/conn"
	"github.com/cubby/cubby/internal/librespot"
	"github.com/cubby/cubby/internal/logging"
	"github.com/cubby/cubby/internal/playback"
	"github.com/cubby/cubby/internal/state"
	"github.com/cubby/cubby/internal/sysvol"
)

var version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Cubby - touchscreen controller for a remote player

Usage: cubby [options]

Options:
  -config string
        Path to config file (default: ~/.config/cubby/config.toml)
  -version
        Print version and exit

Diagnostics:
  -doctor
        Check configuration and device reachability

Examples:
  cubby                  # Start the controller UI
  cubby --doctor         # Check setup

`)
	}

	cfgPath := flag.String("config", "", "")
	doctor := flag.Bool("doctor", false, "")
	showVersion := flag.Bool("version", false, "")
	flag.Parse()

	if *showVersion {
		fmt.Println("cubby", version)
		return
	}

	cfg, resolvedPath, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, logFile, err := logging.Setup()
	if err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	defer logFile.Close()
	logger.Info("starting cubby", slog.String("config", resolvedPath))

	client, err := librespot.NewClient(cfg.Librespot.BaseURL)
	if err != nil {
		logger.Error("device client", slog.Any("err", err))
		log.Fatalf("device client: %v", err)
	}

	if *doctor {
		runDoctor(cfg, client, logger)
		return
	}

	cat, err := catalog.Open(cfg.Catalog.DBPath)
	if err != nil {
		logger.Error("open catalog", slog.Any("err", err))
		log.Fatalf("open catalog: %v", err)
	}
	defer cat.Close()

	store := state.NewStore()

	// Poll results cross into the UI loop through this channel; a full
	// buffer drops the oldest update, never blocking the poll loop.
	statusCh := make(chan app.StatusUpdate, 8)
	postStatus := func(snap state.Snapshot, vol *int) {
		u := app.StatusUpdate{Snap: snap, Volume: vol}
		for {
			select {
			case statusCh <- u:
				return
			default:
				select {
				case <-statusCh:
				default:
				}
			}
		}
	}

	var feed *librespot.EventFeed
	monitor := conn.New(conn.Options{
		PollInterval:     cfg.Timing.PollInterval(),
		FastPollInterval: cfg.Timing.FastPollInterval(),
		GraceThreshold:   cfg.Timing.GraceThreshold,
		StartupAttempts:  cfg.Timing.StartupAttempts,
	}, client, store, func() string {
		if feed == nil {
			return ""
		}
		return feed.ContextURI()
	}, postStatus, logger)

	// Any pushed event proves the device is alive and worth a fresh poll.
	feed = librespot.NewEventFeed(cfg.Librespot.EventsURL, monitor.WakeUp, monitor.WakeUp, logger)
	feed.Start()
	defer feed.Stop()

	monitor.Start()
	defer monitor.Stop()

	noColor := os.Getenv("NO_COLOR") != "" || cfg.UI.NoEmoji
	cfg.UI.NoEmoji = noColor

	mixer := sysvol.NewAlsa(cfg.Volume.MixerControl, logger)
	model := app.New(cfg, store, client, cat, statusCh, mixer, logger)

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("run tui", slog.Any("err", err))
		log.Fatalf("tui: %v", err)
	}

	// One last synchronous save so a replay picks up where this left off.
	saver := playback.NewProgressSaver(cat.SaveProgress, store.Now, logger)
	saver.SaveNow()
	logger.Info("shutdown complete")
}

func runDoctor(cfg *config.Config, client *librespot.Client, logger *slog.Logger) {
	fmt.Println("Cubby doctor")
	fmt.Println("Config file: OK")

	ctx := context.Background()
	if client.Connected(ctx) {
		fmt.Printf("Device (%s): OK\n", cfg.Librespot.BaseURL)
	} else {
		fmt.Printf("Device (%s): NOT REACHABLE\n", cfg.Librespot.BaseURL)
	}

	cat, err := catalog.Open(cfg.Catalog.DBPath)
	if err != nil {
		fmt.Printf("Catalog: ERROR - %v\n", err)
		return
	}
	defer cat.Close()
	items, err := cat.Items(ctx)
	if err != nil {
		fmt.Printf("Catalog: ERROR - %v\n", err)
		return
	}
	fmt.Printf("Catalog: OK (%d items)\n", len(items))

	logger.Info("doctor complete")
}
