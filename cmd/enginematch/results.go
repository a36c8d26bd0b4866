package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/qnkhuat/chessbridge/pkg"
)

// score is counted from engine A's point of view.
type score struct {
	wins, losses, draws int
}

func (s *score) add(res gameResult) {
	switch {
	case res.over.Outcome == "1/2-1/2":
		s.draws++
	case res.over.Outcome == "1-0" && res.gameInfo.engineAIsWhite,
		res.over.Outcome == "0-1" && !res.gameInfo.engineAIsWhite:
		s.wins++
	default:
		s.losses++
	}
}

func (s score) games() int {
	return s.wins + s.losses + s.draws
}

type gameStatistics struct {
	winningFraction float64
	eloDifference   float64
	los             float64
}

// https://www.chessprogramming.org/Match_Statistics
func (s score) stat() gameStatistics {
	games := float64(s.games())
	if games == 0 {
		return gameStatistics{winningFraction: 0.5, los: 0.5}
	}
	wf := (float64(s.wins) + 0.5*float64(s.draws)) / games
	elo := math.Inf(1)
	if wf <= 0 {
		elo = math.Inf(-1)
	} else if wf < 1 {
		elo = -math.Log(1/wf-1) * 400 / math.Ln10
	}
	los := 0.5
	if decisive := s.wins + s.losses; decisive > 0 {
		los = 0.5 + 0.5*math.Erf(float64(s.wins-s.losses)/math.Sqrt(2*float64(decisive)))
	}
	return gameStatistics{winningFraction: wf, eloDifference: elo, los: los}
}

// printer serializes output from concurrent games.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	json    bool
	verbose bool
	names   [2]string
}

func (p *printer) message(game int, m pkg.MessageInterface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		data := pkg.Wrap(m).Encode()
		fmt.Fprintf(p.w, "{\"Game\":%d,\"Message\":%s}\n", game, data)
		return
	}
	switch m.(type) {
	case pkg.MessageSearch:
		return
	case pkg.MessageMove:
		if !p.verbose {
			return
		}
		fmt.Fprintf(p.w, "%s %s\n", color.New(color.Faint).Sprintf("[%d]", game), pkg.Text(m))
	case pkg.MessageEngine:
		fmt.Fprintf(p.w, "%s %s\n", color.New(color.Faint).Sprintf("[%d]", game), color.RedString(pkg.Text(m)))
	default:
		fmt.Fprintf(p.w, "%s %s\n", color.New(color.Faint).Sprintf("[%d]", game), pkg.Text(m))
	}
}

func (p *printer) result(res gameResult, total score) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		return
	}
	white, black := p.names[0], p.names[1]
	if !res.gameInfo.engineAIsWhite {
		white, black = black, white
	}
	outcome := res.over.Outcome
	whiteWon := outcome == "1-0"
	switch {
	case outcome == "1/2-1/2":
		outcome = color.YellowString(outcome)
	case whiteWon == res.gameInfo.engineAIsWhite:
		outcome = color.GreenString(outcome)
	default:
		outcome = color.RedString(outcome)
	}
	fmt.Fprintf(p.w, "Finished game %d: %s vs %s %s {%s, %d plies}\n",
		res.gameInfo.gameNumber, white, black, outcome, res.over.Method, len(res.over.Moves))
	p.summaryLocked(total)
}

func (p *printer) summary(total score) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		return
	}
	fmt.Fprintln(p.w, strings.Repeat("-", 40))
	p.summaryLocked(total)
}

func (p *printer) summaryLocked(total score) {
	stat := total.stat()
	fmt.Fprintf(p.w, "Score of %s vs %s: %s - %s - %s  [%.3f] %d\n",
		p.names[0], p.names[1],
		color.GreenString("%d", total.wins),
		color.RedString("%d", total.losses),
		color.YellowString("%d", total.draws),
		stat.winningFraction, total.games())
	fmt.Fprintf(p.w, "Elo difference: %.1f, LOS: %.1f %%\n", stat.eloDifference, stat.los*100)
}
