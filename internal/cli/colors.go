package cli

import (
	"fmt"
	"os"
)

const (
	ResetCode = "\033[0m"
	Bold      = "\033[1m"
	DimCode   = "\033[2m"
	Red       = "\033[31m"
	Green     = "\033[32m"
	Yellow    = "\033[33m"
	Blue      = "\033[34m"
	Purple    = "\033[35m"
	Cyan      = "\033[36m"
)

// RGB represents a TrueColor
type RGB struct {
	R, G, B float64
}

var (
	BrandBlue   = RGB{0, 120, 255}
	BrandPurple = RGB{189, 52, 235}
)

// disableColor is a cached check for the environment variable
var disableColor = checkNoColor()

func checkNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// Enabled reports whether ANSI colors should be emitted.
func Enabled() bool {
	return !disableColor
}

// SetEnabled overrides the NO_COLOR detection, e.g. for --no-color flags and tests.
func SetEnabled(on bool) {
	disableColor = !on
}

// Style wraps text in a specific color code
func Style(text string, colorCode string) string {
	if disableColor {
		return text
	}
	return fmt.Sprintf("%s%s%s", colorCode, text, ResetCode)
}

// ColorizeRGB returns text wrapped in ANSI TrueColor escape codes
func ColorizeRGB(text string, c RGB) string {
	if disableColor {
		return text
	}
	return fmt.Sprintf("\033[38;2;%d;%d;%dm%s%s", int(c.R), int(c.G), int(c.B), text, ResetCode)
}

// Gradient colors text by linear interpolation between start and end, progress in [0,1].
func Gradient(text string, start, end RGB, progress float64) string {
	if disableColor {
		return text
	}
	r := start.R + (end.R-start.R)*progress
	g := start.G + (end.G-start.G)*progress
	b := start.B + (end.B-start.B)*progress

	return ColorizeRGB(text, RGB{r, g, b})
}

// Banner renders the service name with the brand gradient, one step per rune.
func Banner(name string) string {
	runes := []rune(name)
	if len(runes) == 0 || disableColor {
		return name
	}
	out := ""
	for i, r := range runes {
		progress := 0.0
		if len(runes) > 1 {
			progress = float64(i) / float64(len(runes)-1)
		}
		out += Gradient(string(r), BrandBlue, BrandPurple, progress)
	}
	return out
}

func CheckMark() string {
	return Style("✔", Green)
}

func Arrow() string {
	return Style("➜", Blue)
}

func CrossMark() string {
	return Style("✘", Red)
}

func WarningSign() string {
	return Style("!", Yellow)
}
