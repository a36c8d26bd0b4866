package gui

import (
	"fmt"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/notnil/chess"
	"github.com/rivo/tview"
)

const (
	numrows = 8
	numcols = 8
)

// Board is what DrawBoard needs besides the position itself
type Board struct {
	Flip      bool
	Selected  map[chess.Square]bool
	LastMove  *chess.Move
	CheckKing chess.Piece
}

// CellSquare maps a table cell to a square. Column 0 and the bottom row
// hold the rank and file labels.
func CellSquare(row, col int, flip bool) (chess.Square, bool) {
	if row < 0 || row >= numrows || col < 1 || col > numcols {
		return chess.NoSquare, false
	}
	rank, file := numrows-row-1, col-1
	if flip {
		rank, file = row, numcols-col
	}
	return chess.Square(rank*8 + file), true
}

// SquareCell is the inverse of CellSquare.
func SquareCell(sq chess.Square, flip bool) (row, col int) {
	rank, file := int(sq.Rank()), int(sq.File())
	if flip {
		return rank, numcols - file
	}
	return numrows - rank - 1, file + 1
}

func squareBg(sq chess.Square, b Board, t Theme) tcell.Color {
	if b.Selected[sq] {
		return t.SquareSelect
	}
	if b.LastMove != nil && (b.LastMove.S1() == sq || b.LastMove.S2() == sq) {
		return t.SquareHigh
	}
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return t.SquareDark
	}
	return t.SquareLight
}

// DrawBoard fills table with the position, labels included.
func DrawBoard(table *tview.Table, pos *chess.Position, b Board, t Theme) {
	board := pos.Board()
	for r := 0; r <= numrows; r++ {
		for c := 0; c <= numcols; c++ {
			switch {
			case r == numrows && c == 0:
				table.SetCell(r, c, tview.NewTableCell("").SetSelectable(false))
			case c == 0:
				sq, _ := CellSquare(r, 1, b.Flip)
				table.SetCell(r, c, tview.NewTableCell(sq.Rank().String()).
					SetAlign(tview.AlignCenter).
					SetTextColor(t.Rank).
					SetSelectable(false))
			case r == numrows:
				sq, _ := CellSquare(0, c, b.Flip)
				table.SetCell(r, c, tview.NewTableCell(" "+sq.File().String()).
					SetAlign(tview.AlignCenter).
					SetTextColor(t.File).
					SetSelectable(false))
			default:
				sq, _ := CellSquare(r, c, b.Flip)
				p := board.Piece(sq)
				bg := squareBg(sq, b, t)
				if p != chess.NoPiece && p == b.CheckKing {
					bg = t.SquareCheck
				}
				fg := t.White
				if p.Color() == chess.Black {
					fg = t.Black
				}
				table.SetCell(r, c, tview.NewTableCell(" "+p.String()+" ").
					SetAlign(tview.AlignCenter).
					SetTextColor(fg).
					SetBackgroundColor(bg))
			}
		}
	}
}

// FindMove returns the legal move on pos written as the UCI token move.
func FindMove(pos *chess.Position, move string) *chess.Move {
	for _, m := range pos.ValidMoves() {
		if m.String() == move {
			return m
		}
	}
	return nil
}

// CheckedKing returns the king that last left in check, or NoPiece.
func CheckedKing(last *chess.Move, turn chess.Color) chess.Piece {
	if last == nil || !last.HasTag(chess.Check) {
		return chess.NoPiece
	}
	if turn == chess.White {
		return chess.WhiteKing
	}
	return chess.BlackKing
}

// MoveRows pairs SAN moves into numbered rows, keeping the last n.
func MoveRows(san []string, startBlack bool, n int) []string {
	var rows []string
	moveNo := 1
	i := 0
	if startBlack && len(san) > 0 {
		rows = append(rows, fmt.Sprintf("%-4s %-7s %-7s", "1.", "...", san[0]))
		moveNo, i = 2, 1
	}
	for ; i < len(san); i += 2 {
		black := ""
		if i+1 < len(san) {
			black = san[i+1]
		}
		rows = append(rows, fmt.Sprintf("%-4s %-7s %-7s", fmt.Sprintf("%d.", moveNo), san[i], black))
		moveNo++
	}
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return rows
}

// WinProb maps a centipawn score to a winning chance in [0, 1].
func WinProb(cp int) float64 {
	return 1 / (1 + math.Pow(10, -float64(cp)/400))
}

// Meter draws a horizontal bar of width cells for White's winning chance.
func Meter(prob float64, width int) string {
	filled := int(math.Round(prob * float64(width)))
	if filled < 0 {
		filled = 0
	} else if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
