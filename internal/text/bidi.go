package text

import (
	"golang.org/x/text/unicode/bidi"
)

// Direction represents text direction
type Direction int

const (
	LeftToRight Direction = iota
	RightToLeft
)

// DirectionOf returns the direction of the first strong character in text.
// Text without strong characters reads left to right.
func DirectionOf(text string) Direction {
	for _, r := range text {
		props, _ := bidi.LookupRune(r)
		switch props.Class() {
		case bidi.R, bidi.AL:
			return RightToLeft
		case bidi.L:
			return LeftToRight
		}
	}
	return LeftToRight
}

// IsRTL checks if a string reads right to left
func IsRTL(text string) bool {
	return DirectionOf(text) == RightToLeft
}
