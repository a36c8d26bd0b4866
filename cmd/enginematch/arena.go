package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/qnkhuat/chessbridge/pkg"
)

type gameInfo struct {
	gameNumber     int
	fen            string
	engineAIsWhite bool
}

type gameResult struct {
	gameInfo gameInfo
	over     pkg.MessageGameOver
	// adjudicated games hit the ply limit and count as draws
	adjudicated bool
}

type arena struct {
	cfg         pkg.Config // Players[0] is engine A, Players[1] engine B
	games       int
	concurrency int
	maxPly      int
	fens        []string
	printer     *printer
	log         zerolog.Logger
}

func (a *arena) Run(ctx context.Context) (score, error) {
	g, ctx := errgroup.WithContext(ctx)

	var gameInfos = make(chan gameInfo)
	var gameResults = make(chan gameResult)
	var total score

	g.Go(func() error {
		defer close(gameInfos)
		for i := 0; i < a.games; i++ {
			info := gameInfo{gameNumber: i + 1, engineAIsWhite: i%2 == 0}
			if len(a.fens) > 0 {
				// both colors play each opening
				info.fen = a.fens[(i/2)%len(a.fens)]
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case gameInfos <- info:
			}
		}
		return nil
	})

	g.Go(func() error {
		for res := range gameResults {
			total.add(res)
			a.printer.result(res, total)
		}
		return nil
	})

	var wg = &sync.WaitGroup{}
	for i := 0; i < a.concurrency; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return a.playGames(ctx, gameInfos, gameResults)
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(gameResults)
		return nil
	})

	err := g.Wait()
	return total, err
}

func (a *arena) playGames(ctx context.Context, gameInfos <-chan gameInfo, gameResults chan<- gameResult) error {
	for info := range gameInfos {
		res, err := a.playGame(ctx, info)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case gameResults <- res:
		}
	}
	return nil
}

var errEngine = errors.New("engine failed")

// playGame runs one engine-vs-engine game on its own owner loop.
func (a *arena) playGame(ctx context.Context, info gameInfo) (gameResult, error) {
	cfg := a.cfg
	if !info.engineAIsWhite {
		cfg.Players[pkg.White], cfg.Players[pkg.Black] = cfg.Players[pkg.Black], cfg.Players[pkg.White]
	}
	res := gameResult{gameInfo: info}
	log := a.log.With().Int("game", info.gameNumber).Logger()

	over := make(chan pkg.MessageGameOver, 1)
	failed := make(chan error, 1)
	limit := make(chan struct{}, 1)
	transcript := pkg.NewTranscript([2]string{cfg.Players[0].Name, cfg.Players[1].Name}, func(m pkg.MessageInterface) {
		a.printer.message(info.gameNumber, m)
		// the sink runs on the owner loop, so it must never block
		switch m := m.(type) {
		case pkg.MessageGameOver:
			select {
			case over <- m:
			default:
			}
		case pkg.MessageEngine:
			select {
			case failed <- errors.New(m.Error):
			default:
			}
		case pkg.MessageMove:
			if a.maxPly > 0 && m.Ply >= a.maxPly {
				select {
				case limit <- struct{}{}:
				default:
				}
			}
		}
	})

	loop := pkg.NewLoop()
	// the loop outlives ctx so the engines can still be stopped
	loopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(loopCtx)

	orch := pkg.NewOrchestrator(cfg, loop, pkg.ChessRules{}, transcript, log)
	var err error
	loop.Call(func() {
		err = orch.NewGame(pkg.Setup{Mode: pkg.EngineVsEngine, StartFEN: info.fen})
	})
	if err != nil {
		return res, err
	}

	select {
	case res.over = <-over:
	case <-limit:
		res.adjudicated = true
		loop.Call(func() {
			m := orch.Match()
			res.over = pkg.MessageGameOver{Outcome: "1/2-1/2", Method: "PlyLimit", Moves: append([]string(nil), m.Moves...)}
		})
	case err = <-failed:
		err = fmt.Errorf("game %d: %w: %w", info.gameNumber, errEngine, err)
	case <-ctx.Done():
		err = ctx.Err()
	}

	var gone <-chan struct{}
	loop.Call(func() { gone = orch.Stop() })
	<-gone
	log.Info().Str("outcome", res.over.Outcome).Err(err).Msg("game finished")
	return res, err
}
