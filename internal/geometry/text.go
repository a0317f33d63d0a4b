package geometry

import (
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// LineHeight is the line advance as a multiple of font size.
const LineHeight = 1.2

var (
	fontOnce   sync.Once
	fontSource *text.FontSource
)

// FontSource returns the shared Go Regular font used for measuring and
// drawing text, or nil if it failed to parse.
func FontSource() *text.FontSource {
	fontOnce.Do(func() {
		src, err := text.NewFontSource(goregular.TTF)
		if err == nil {
			fontSource = src
		}
	})
	return fontSource
}

// MeasureText returns the width and height of s drawn at fontSize. Every
// line is measured and the widest wins; height grows with the line count.
func MeasureText(s string, fontSize float64) (float64, float64) {
	if fontSize <= 0 {
		return 0, 0
	}
	lines := strings.Split(s, "\n")

	var face text.Face
	if src := FontSource(); src != nil {
		face = src.Face(fontSize)
	}

	width := 0.0
	for _, line := range lines {
		var w float64
		if face != nil {
			w, _ = text.Measure(line, face)
		} else {
			w = float64(len([]rune(line))) * fontSize * 0.6
		}
		width = max(width, w)
	}
	return width, float64(len(lines)) * fontSize * LineHeight
}
