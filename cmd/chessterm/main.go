package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/qnkhuat/chessbridge/pkg"
	"github.com/qnkhuat/chessbridge/pkg/config"
	"github.com/qnkhuat/chessbridge/pkg/gui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("chessterm: %v", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flag.StringVar(&cfg.Logs.Path, "log", cfg.Logs.Path, "path to log file")
	flag.StringVar(&cfg.Logs.Level, "level", cfg.Logs.Level, "log level")
	flag.StringVar(&cfg.White.Command, "white", cfg.White.Command, "engine playing White")
	flag.StringVar(&cfg.Black.Command, "black", cfg.Black.Command, "engine playing Black")
	flag.DurationVar(&cfg.Delay, "delay", cfg.Delay, "pause between moves in engine-vs-engine games")
	themeName := flag.String("theme", gui.ThemeBasic.Name, "board theme")
	themeFile := flag.String("themes", "", "JSON file with extra themes")
	flag.Parse()

	theme, err := loadTheme(*themeName, *themeFile)
	if err != nil {
		return err
	}

	logger, logFile, err := pkg.InitLog(cfg.Logs.Path, cfg.Logs.Level, "CLIENT: ")
	if err != nil {
		return err
	}
	defer logFile.Close()

	matchCfg, err := pkg.NewConfig(cfg)
	if err != nil {
		return err
	}

	logger.Info().
		Str("white", cfg.White.Command).
		Str("black", cfg.Black.Command).
		Msg("New Client")
	cl := pkg.NewClient(matchCfg, theme, logger)
	return cl.Run()
}

func loadTheme(name, path string) (gui.Theme, error) {
	var themes []gui.ThemeHex
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return gui.Theme{}, err
		}
		defer f.Close()
		if themes, err = gui.LoadThemes(f); err != nil {
			return gui.Theme{}, err
		}
	}
	return gui.ImportThemes(name, themes)
}
