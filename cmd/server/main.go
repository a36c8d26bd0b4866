package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gliderlabs/ssh"

	"github.com/qnkhuat/chessbridge/pkg"
	"github.com/qnkhuat/chessbridge/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("server: %v", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flag.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "ssh listen address")
	flag.StringVar(&cfg.Server.HostKeyPath, "hostkey", cfg.Server.HostKeyPath, "ssh host key file, empty for a throwaway key")
	flag.StringVar(&cfg.Server.ClientPath, "client", cfg.Server.ClientPath, "terminal client binary served to every session")
	flag.StringVar(&cfg.Logs.Path, "log", cfg.Logs.Path, "path to log file")
	flag.StringVar(&cfg.Logs.Level, "level", cfg.Logs.Level, "log level")
	flag.Parse()

	logger, logFile, err := pkg.InitLog(cfg.Logs.Path, cfg.Logs.Level, "SERVER: ")
	if err != nil {
		return err
	}
	defer logFile.Close()

	s, err := pkg.NewServer(cfg.Server, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() {
		served <- s.ListenAndServe()
	}()
	logger.Info().Str("addr", cfg.Server.Addr).Str("client", cfg.Server.ClientPath).Msg("Server started")
	fmt.Printf("Listening at %s\n", color.GreenString(cfg.Server.Addr))

	select {
	case err = <-served:
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = s.Shutdown(sctx)
	}
	if errors.Is(err, ssh.ErrServerClosed) {
		return nil
	}
	return err
}
