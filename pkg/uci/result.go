package uci

import (
	"fmt"
	"strconv"
	"strings"
)

// SearchResult is what a finished search produced.
type SearchResult struct {
	BestMove string
	Ponder   string
	// Exactly one of CP and Mate is set once the engine reported a score.
	CP    *int // centipawns, side to move
	Mate  *int // mate in N, negative when the side to move is getting mated
	Depth int
	PV    []string
}

// NullMove reports whether the engine answered without a usable move.
func (r SearchResult) NullMove() bool {
	return r.BestMove == "" || r.BestMove == "0000" || r.BestMove == "(none)"
}

// Pawns returns the centipawn score in pawns.
func (r SearchResult) Pawns() (float64, bool) {
	if r.CP == nil {
		return 0, false
	}
	return float64(*r.CP) / 100, true
}

// Eval formats the score the way a board sidebar shows it: +1.50, -0.35, #3, #-2.
func (r SearchResult) Eval() string {
	if r.Mate != nil {
		return fmt.Sprintf("#%d", *r.Mate)
	}
	if p, ok := r.Pawns(); ok {
		return fmt.Sprintf("%+.2f", p)
	}
	return ""
}

// apply folds one info line into the result. Fields we do not know are skipped.
func (r *SearchResult) apply(fields []string) {
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				if d, err := strconv.Atoi(fields[i+1]); err == nil {
					r.Depth = d
				}
				i++
			}
		case "score":
			if i+2 < len(fields) {
				v, err := strconv.Atoi(fields[i+2])
				if err == nil {
					switch fields[i+1] {
					case "cp":
						r.CP, r.Mate = &v, nil
					case "mate":
						r.Mate, r.CP = &v, nil
					}
				}
				i += 2
			}
		case "pv":
			r.PV = append([]string(nil), fields[i+1:]...)
			return
		case "string":
			// free text until end of line
			return
		}
	}
}

// parseBestMove reads `bestmove <move> [ponder <move>]`.
func parseBestMove(line string) (best, ponder string, err error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	best = fields[1]
	for i := 2; i+1 < len(fields); i++ {
		if fields[i] == "ponder" {
			ponder = fields[i+1]
			break
		}
	}
	return best, ponder, nil
}

// ParseSearchOutput replays engine output lines until the first bestmove line
// and returns the accumulated result. It is the pure half of Client.Search.
func ParseSearchOutput(lines []string) (SearchResult, error) {
	var res SearchResult
	for _, line := range lines {
		done, err := res.feed(line)
		if err != nil {
			return SearchResult{}, err
		}
		if done {
			return res, nil
		}
	}
	return SearchResult{}, fmt.Errorf("%w: output ended before bestmove", ErrUnavailable)
}

func (r *SearchResult) feed(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "info":
		r.apply(fields)
	case "bestmove":
		best, ponder, err := parseBestMove(line)
		if err != nil {
			return false, err
		}
		r.BestMove, r.Ponder = best, ponder
		return true, nil
	}
	return false, nil
}
