// Package main implements rsincrond, the watch daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dpvpro/rsincron/internal/config"
	"github.com/dpvpro/rsincron/pkg/control"
	"github.com/dpvpro/rsincron/pkg/engine"
	"github.com/dpvpro/rsincron/pkg/kernel"
	"github.com/dpvpro/rsincron/pkg/watch"
)

const version = "0.1.0"

func main() {
	var (
		configFile string
		socketFile = flag.String("s", "", "Control socket path (default: $XDG_RUNTIME_DIR/rsincron.socket)")
		runAs      = flag.String("u", "", "Run spawned commands as this user (default: same as daemon)")
		toStderr   = flag.Bool("foreground", false, "Log to stderr instead of syslog")
		showVer    = flag.Bool("V", false, "Show version and exit")
	)
	flag.StringVar(&configFile, "c", config.DefaultConfigPath(), "Configuration file path")
	flag.StringVar(&configFile, "config", config.DefaultConfigPath(), "Configuration file path")
	flag.Parse()

	if *showVer {
		fmt.Printf("rsincrond %s\n", version)
		os.Exit(0)
	}

	log := setupLogging(*toStderr)

	cfg := config.Load(configFile, log)
	socketPath := *socketFile
	if socketPath == "" {
		socketPath = config.DefaultSocketPath()
	}

	kern, err := kernel.Open()
	if err != nil {
		log.Error().Err(err).Msg("failed to open inotify")
		os.Exit(1)
	}
	defer kern.Close()

	eng := engine.New(kern, engine.Config{
		TablePath: cfg.WatchTableFile,
		RunAs:     watch.RunAs(*runAs),
	}, log)

	if err := eng.Reload(); err != nil {
		log.Warn().Err(err).Msg("initial table load failed; starting with an empty registry")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener, err := control.Listen(socketPath, log)
	if err != nil {
		// spec.md §7 SocketSetup: log and run without the feature.
		log.Warn().Err(err).Msg("control socket unavailable; reload via socket disabled")
	} else {
		defer listener.Close()
		go listener.Serve(ctx, eng.SignalReload)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	log.Info().Str("version", version).Str("table", cfg.WatchTableFile).Msg("rsincrond starting")
	if err := eng.Run(ctx); err != nil {
		log.Error().Err(err).Msg("rsincrond exiting on fatal error")
		os.Exit(1)
	}
	log.Info().Msg("rsincrond shut down")
}

func setupLogging(toStderr bool) zerolog.Logger {
	if toStderr {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	w, err := dialSyslog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rsincrond: falling back to stderr logging: %v\n", err)
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}
