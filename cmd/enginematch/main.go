package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/qnkhuat/chessbridge/pkg"
	"github.com/qnkhuat/chessbridge/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("enginematch: %v", err))
		os.Exit(1)
	}
}

type options struct {
	games       int
	concurrency int
	maxPly      int
	fens        string
	json        bool
	verbose     bool
}

// parseFlags layers the command line over the environment in cfg.
func parseFlags(fs *flag.FlagSet, cfg *config.Config, args []string) (options, error) {
	var opts options
	fs.StringVar(&cfg.White.Command, "a", cfg.White.Command, "engine A command line")
	fs.StringVar(&cfg.Black.Command, "b", cfg.Black.Command, "engine B command line")
	moveTime := fs.Duration("movetime", 0, "time per move for both engines (overrides the environment)")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "pause between moves, 0 to play at full speed")
	fs.IntVar(&opts.games, "games", 2, "number of games, colors alternate")
	fs.IntVar(&opts.concurrency, "concurrency", 1, "games played at the same time")
	fs.IntVar(&opts.maxPly, "maxply", 300, "adjudicate a draw after this many plies, 0 for no limit")
	fs.StringVar(&opts.fens, "fen", "", "start positions, separated by '|'")
	fs.BoolVar(&opts.json, "json", false, "print every event as a JSON line")
	fs.BoolVar(&opts.verbose, "v", false, "print every move")
	fs.StringVar(&cfg.Logs.Path, "log", cfg.Logs.Path, "path to log file")
	fs.StringVar(&cfg.Logs.Level, "level", cfg.Logs.Level, "log level")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if *moveTime > 0 {
		cfg.White.MoveTime, cfg.Black.MoveTime = *moveTime, *moveTime
	}
	if opts.concurrency < 1 {
		opts.concurrency = 1
	}
	return opts, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts, err := parseFlags(flag.CommandLine, cfg, os.Args[1:])
	if err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	logger, logFile, err := pkg.InitLog(cfg.Logs.Path, cfg.Logs.Level, "ENGINEMATCH: ")
	if err != nil {
		return err
	}
	defer logFile.Close()

	matchCfg, err := pkg.NewConfig(cfg)
	if err != nil {
		return err
	}

	var openings []string
	for _, fen := range strings.Split(opts.fens, "|") {
		if fen = strings.TrimSpace(fen); fen == "" {
			continue
		}
		if _, err := pkg.StartingPosition(fen); err != nil {
			return fmt.Errorf("%w: %q: %w", pkg.ErrInvalidPosition, fen, err)
		}
		openings = append(openings, fen)
	}

	names := [2]string{matchCfg.Players[0].Name, matchCfg.Players[1].Name}
	if names[0] == names[1] {
		names[0], names[1] = names[0]+" (A)", names[1]+" (B)"
	}
	matchCfg.Players[0].Name, matchCfg.Players[1].Name = names[0], names[1]

	a := &arena{
		cfg:         matchCfg,
		games:       opts.games,
		concurrency: opts.concurrency,
		maxPly:      opts.maxPly,
		fens:        openings,
		printer:     &printer{w: os.Stdout, json: opts.json, verbose: opts.verbose, names: names},
		log:         logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	logger.Info().Int("games", opts.games).Int("concurrency", opts.concurrency).Dur("delay", cfg.Delay).Msg("match started")
	total, err := a.Run(ctx)
	a.printer.summary(total)
	logger.Info().Dur("took", time.Since(start)).Err(err).Msg("match finished")
	return err
}
