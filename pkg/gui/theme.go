package gui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// Terminal safe color palette is available here
// https://upload.wikimedia.org/wikipedia/commons/1/15/Xterm_256color_chart.svg

var ErrNoTheme = errors.New("theme: no theme found")

// Theme is used for dynamically coloring the board and side panel
type Theme struct {
	Name         string
	SquareDark   tcell.Color
	SquareLight  tcell.Color
	SquareHigh   tcell.Color
	SquareSelect tcell.Color
	SquareCheck  tcell.Color
	White        tcell.Color
	Black        tcell.Color
	Rank         tcell.Color
	File         tcell.Color
	Msg          tcell.Color
	Thinking     tcell.Color
	MeterWin     tcell.Color
	MeterLose    tcell.Color
}

// ThemeHex is the on-disk form of a Theme
type ThemeHex struct {
	Name         string `json:"name"`
	SquareDark   string `json:"squareDark"`
	SquareLight  string `json:"squareLight"`
	SquareHigh   string `json:"squareHigh"`
	SquareSelect string `json:"squareSelect"`
	SquareCheck  string `json:"squareCheck"`
	White        string `json:"white"`
	Black        string `json:"black"`
	Rank         string `json:"rank"`
	File         string `json:"file"`
	Msg          string `json:"msg"`
	Thinking     string `json:"thinking"`
	MeterWin     string `json:"meterWin"`
	MeterLose    string `json:"meterLose"`
}

// fmtHex returns "#0" for ColorDefault so it survives a round trip
// instead of being read back as black
func fmtHex(c tcell.Color) string {
	if c == tcell.ColorDefault {
		return "#0"
	}
	return fmt.Sprintf("#%06x", c.Hex())
}

// parseHex accepts #rgb, #rrggbb and "#0" for the terminal default.
func parseHex(field, s string) (tcell.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "#0" || strings.EqualFold(s, "default") {
		return tcell.ColorDefault, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return tcell.ColorDefault, fmt.Errorf("theme: %s: %w", field, err)
	}
	return toTcell(c), nil
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

func toColorful(c tcell.Color) colorful.Color {
	r, g, b := c.RGB()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// Hex converts a Theme to a ThemeHex
func (t Theme) Hex() ThemeHex {
	return ThemeHex{
		Name:         t.Name,
		SquareDark:   fmtHex(t.SquareDark),
		SquareLight:  fmtHex(t.SquareLight),
		SquareHigh:   fmtHex(t.SquareHigh),
		SquareSelect: fmtHex(t.SquareSelect),
		SquareCheck:  fmtHex(t.SquareCheck),
		White:        fmtHex(t.White),
		Black:        fmtHex(t.Black),
		Rank:         fmtHex(t.Rank),
		File:         fmtHex(t.File),
		Msg:          fmtHex(t.Msg),
		Thinking:     fmtHex(t.Thinking),
		MeterWin:     fmtHex(t.MeterWin),
		MeterLose:    fmtHex(t.MeterLose),
	}
}

// Theme converts a ThemeHex to a Theme
func (t ThemeHex) Theme() (Theme, error) {
	out := Theme{Name: t.Name}
	for _, f := range []struct {
		name string
		hex  string
		dst  *tcell.Color
	}{
		{"squareDark", t.SquareDark, &out.SquareDark},
		{"squareLight", t.SquareLight, &out.SquareLight},
		{"squareHigh", t.SquareHigh, &out.SquareHigh},
		{"squareSelect", t.SquareSelect, &out.SquareSelect},
		{"squareCheck", t.SquareCheck, &out.SquareCheck},
		{"white", t.White, &out.White},
		{"black", t.Black, &out.Black},
		{"rank", t.Rank, &out.Rank},
		{"file", t.File, &out.File},
		{"msg", t.Msg, &out.Msg},
		{"thinking", t.Thinking, &out.Thinking},
		{"meterWin", t.MeterWin, &out.MeterWin},
		{"meterLose", t.MeterLose, &out.MeterLose},
	} {
		c, err := parseHex(f.name, f.hex)
		if err != nil {
			return Theme{}, err
		}
		*f.dst = c
	}
	return out, nil
}

// LoadThemes reads a JSON array of ThemeHex
func LoadThemes(r io.Reader) ([]ThemeHex, error) {
	var themes []ThemeHex
	if err := json.NewDecoder(r).Decode(&themes); err != nil {
		return nil, fmt.Errorf("theme: %w", err)
	}
	return themes, nil
}

// ImportThemes returns the theme called want. The built-in themes are used
// when themes does not override them.
func ImportThemes(want string, themes []ThemeHex) (Theme, error) {
	for _, t := range themes {
		if t.Name == want {
			return t.Theme()
		}
	}
	for _, t := range Builtin {
		if t.Name == want {
			return t, nil
		}
	}
	return Theme{}, fmt.Errorf("%w: %q", ErrNoTheme, want)
}

// MeterColor blends between MeterLose and MeterWin. prob is White's
// winning chance in [0, 1].
func (t Theme) MeterColor(prob float64) tcell.Color {
	if prob < 0 {
		prob = 0
	} else if prob > 1 {
		prob = 1
	}
	return toTcell(toColorful(t.MeterLose).BlendLab(toColorful(t.MeterWin), prob))
}

// ThemeBasic is the default theme
var ThemeBasic = Theme{
	Name:         "basic",
	SquareDark:   tcell.Color188,
	SquareLight:  tcell.Color230,
	SquareHigh:   tcell.Color226,
	SquareSelect: tcell.Color223,
	SquareCheck:  tcell.Color218,
	White:        tcell.Color232,
	Black:        tcell.Color232,
	Rank:         tcell.Color247,
	File:         tcell.Color247,
	Msg:          tcell.Color160,
	Thinking:     tcell.Color45,
	MeterWin:     tcell.Color122,
	MeterLose:    tcell.Color167,
}

var ThemeClassic = Theme{
	Name:         "classic",
	SquareDark:   tcell.ColorGreen,
	SquareLight:  tcell.ColorBlue,
	SquareHigh:   tcell.ColorYellow,
	SquareSelect: tcell.ColorRed,
	SquareCheck:  tcell.ColorRed,
	White:        tcell.ColorWhite,
	Black:        tcell.ColorBlack,
	Rank:         tcell.ColorDefault,
	File:         tcell.ColorDefault,
	Msg:          tcell.ColorRed,
	Thinking:     tcell.ColorAqua,
	MeterWin:     tcell.ColorWhite,
	MeterLose:    tcell.ColorGray,
}

var Builtin = []Theme{ThemeBasic, ThemeClassic}
