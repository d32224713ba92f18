// Package annotate composites a signature image onto a user-supplied picture at a requested
// anchor, then shrinks the result until its encoding fits a byte budget.
package annotate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrSizeBudget = errors.New("image cannot be shrunk to fit the size budget")

const (
	// signature width relative to the image's shorter side
	signatureRatioNum = 3
	signatureRatioDen = 5
	// edge margin as a fraction of the corresponding dimension
	marginDen = 30

	shrinkFactor = 0.95
	// neither dimension is shrunk below this
	MinDimension  = 64
	MaxIterations = 200
)

// Computes where the scaled signature goes inside a w×h image. The signature is scaled so its
// width is 3/5 of the image's shorter side, keeping its aspect ratio.
func Placement(w, h int, sigSize image.Point, a Anchor) image.Rectangle {
	if sigSize.X <= 0 || sigSize.Y <= 0 {
		return image.Rectangle{}
	}
	short := min(w, h)
	sw := short * signatureRatioNum / signatureRatioDen
	sh := sigSize.Y * sw / sigSize.X

	hAlign, vAlign := a.axes()
	var x, y int
	switch hAlign {
	case alignStart:
		x = w / marginDen
	case alignCenter:
		x = (w - sw) / 2
	case alignEnd:
		x = w - w/marginDen - sw
	}
	switch vAlign {
	case alignStart:
		y = h / marginDen
	case alignCenter:
		y = (h - sh) / 2
	case alignEnd:
		y = h - h/marginDen - sh
	}
	return image.Rect(x, y, x+sw, y+sh)
}

// Draws the signature over a copy of img at the anchor.
func Compose(img, sig image.Image, a Anchor) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	dst := Placement(b.Dx(), b.Dy(), sig.Bounds().Size(), a)
	if !dst.Empty() {
		draw.CatmullRom.Scale(out, dst, sig, sig.Bounds(), draw.Over, nil)
	}
	return out
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encodes img as PNG, shrinking both dimensions by 5% per step until the encoding is at most
// budget bytes. A budget <= 0 means unlimited. Returns ErrSizeBudget if the image would have
// to drop below MinDimension or the iteration bound is reached.
func FitToBudget(img image.Image, budget int) ([]byte, error) {
	cur := img
	for i := 0; ; i++ {
		enc, err := encodePNG(cur)
		if err != nil {
			return nil, err
		}
		if budget <= 0 || len(enc) <= budget {
			return enc, nil
		}
		if i >= MaxIterations {
			return nil, fmt.Errorf("%w: still %d bytes after %d shrinks", ErrSizeBudget, len(enc), i)
		}

		b := cur.Bounds()
		nw := int(float64(b.Dx()) * shrinkFactor)
		nh := int(float64(b.Dy()) * shrinkFactor)
		if nw < MinDimension || nh < MinDimension {
			return nil, fmt.Errorf("%w: %d bytes at %dx%d", ErrSizeBudget, len(enc), b.Dx(), b.Dy())
		}
		next := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(next, next.Bounds(), cur, b, draw.Src, nil)
		cur = next
	}
}

type Annotator struct {
	Signature image.Image
}

func LoadSignature(path string) (*Annotator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening signature image: %w", err)
	}
	defer f.Close()
	sig, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding signature image: %w", err)
	}
	return &Annotator{Signature: sig}, nil
}

// Composes and size-fits raw image bytes (JPEG, PNG, GIF or WebP). Returns PNG bytes.
func (a *Annotator) Annotate(raw []byte, anchor Anchor, budget int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return FitToBudget(Compose(img, a.Signature, anchor), budget)
}

// Annotates the image file at inPath and writes the result next to it as
// "<base>_signed.png". Returns the output path.
func (a *Annotator) AnnotateFile(inPath string, anchor Anchor, budget int) (string, error) {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return "", err
	}
	out, err := a.Annotate(raw, anchor, budget)
	if err != nil {
		return "", err
	}
	outPath := strings.TrimSuffix(inPath, filepath.Ext(inPath)) + "_signed.png"
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return "", fmt.Errorf("writing annotated image: %w", err)
	}
	return outPath, nil
}
