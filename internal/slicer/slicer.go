// Package slicer cuts horizontal pixel bands out of rendered section bitmaps.
package slicer

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Slice returns a new bitmap with the source's width holding rows
// [yStartPx, yStartPx+heightPx) of src, counted from the top of src's bounds.
// The source is never modified. heightPx must be positive and the band must
// lie inside the source.
func Slice(src image.Image, yStartPx, heightPx int) *image.RGBA {
	b := src.Bounds()
	if heightPx <= 0 {
		panic(fmt.Sprintf("slicer: non-positive slice height %d", heightPx))
	}
	if yStartPx < 0 || yStartPx+heightPx > b.Dy() {
		panic(fmt.Sprintf("slicer: band [%d,%d) outside bitmap of height %d", yStartPx, yStartPx+heightPx, b.Dy()))
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), heightPx))
	draw.Draw(dst, dst.Bounds(), src, image.Pt(b.Min.X, b.Min.Y+yStartPx), draw.Src)
	return dst
}
