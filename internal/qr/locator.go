// Package qr finds the payment QR code image inside an invoice PDF. The
// provider renders the QR as the only large near-square raster on the
// first page, so locating it is a geometric filter over the page's image
// blocks rather than actual barcode detection.
package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	_ "image/jpeg" // invoice QR blocks are DCTDecode streams
	_ "image/png"
)

// NotFoundError reports that no image block on the page passed the
// geometric filter.
type NotFoundError struct {
	Blocks int // image blocks examined
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("qr: no QR-shaped image among %d block(s)", e.Blocks)
}

// Locator filters page image blocks down to the QR candidate. A block is
// rejected only when it is both shorter than MinHeight and clearly
// non-square; a tall enough block passes regardless of its ratio, since
// the provider pads the QR with a quiet zone of varying width.
type Locator struct {
	MinHeight int     // pixels
	RatioMin  float64 // width/height lower bound
	RatioMax  float64 // width/height upper bound
}

// DefaultLocator matches the provider's current invoice layout.
var DefaultLocator = Locator{MinHeight: 400, RatioMin: 0.9, RatioMax: 1.1}

// Locate returns the first block that passes the filter.
func (l Locator) Locate(blocks []ImageBlock) (ImageBlock, error) {
	for _, b := range blocks {
		if b.Height <= 0 {
			continue
		}
		ratio := float64(b.Width) / float64(b.Height)
		if b.Height < l.MinHeight && !(ratio >= l.RatioMin && ratio <= l.RatioMax) {
			continue
		}
		return b, nil
	}
	return ImageBlock{}, &NotFoundError{Blocks: len(blocks)}
}

// FindQR extracts the QR image from an invoice PDF: it collects the
// first page's image blocks, locates the candidate, decodes it and crops
// off the non-square margin.
func (l Locator) FindQR(doc []byte) (image.Image, error) {
	blocks, err := pageImageBlocks(doc)
	if err != nil {
		return nil, err
	}
	block, err := l.Locate(blocks)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(block.Data))
	if err != nil {
		return nil, fmt.Errorf("qr: decode image block (%s): %w", block.Filter, err)
	}
	return cropSquare(img), nil
}

// FindQR locates the QR with the default thresholds.
func FindQR(doc []byte) (image.Image, error) {
	return DefaultLocator.FindQR(doc)
}

// cropSquare cuts the image down to a square anchored at the origin,
// side equal to the smaller dimension. Already-square images pass
// through untouched.
func cropSquare(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == h {
		return img
	}
	side := w
	if h < side {
		side = h
	}
	rect := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+side, bounds.Min.Y+side)

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(rect)
	}
	out := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}
