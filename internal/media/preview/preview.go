// Package preview renders the fixed-size JPEG derivatives shown by the tagging
// page and the search grid.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	// Decoders beyond the jpeg/png/gif/bmp/tiff set registered by imaging.
	_ "golang.org/x/image/webp"
)

// ErrDecode marks source bytes that are not a decodable image.
var ErrDecode = errors.New("preview: decode image")

// Box is a bounding box a rendition must fit in.
type Box struct {
	Width  int
	Height int
}

type Source struct {
	Image  image.Image
	Width  int
	Height int
}

type Rendition struct {
	Data   []byte
	Width  int
	Height int
}

type Result struct {
	Tag    Rendition
	Search Rendition
}

type Generator struct {
	tag     Box
	search  Box
	quality int
}

func NewGenerator(tag, search Box, quality int) *Generator {
	return &Generator{tag: tag, search: search, quality: quality}
}

// Decode reads data without modifying it. EXIF orientation is applied so
// previews come out upright.
func (g *Generator) Decode(data []byte) (Source, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Source{}, fmt.Errorf("%w: zero-sized image", ErrDecode)
	}

	return Source{Image: img, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// Render produces both renditions. Resampling cannot be interrupted, so on
// cancellation the work is abandoned and ctx.Err() returned.
func (g *Generator) Render(ctx context.Context, src Source) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := g.render(src)
		done <- outcome{result: res, err: err}
	}()

	select {
	case <-ctx.Done():
		// The goroutine keeps its CPU until the resize finishes; done is
		// buffered so it can exit without a reader. The upload size limit
		// bounds how long that can take.
		return Result{}, ctx.Err()
	case out := <-done:
		return out.result, out.err
	}
}

func (g *Generator) Generate(ctx context.Context, data []byte) (Result, error) {
	src, err := g.Decode(data)
	if err != nil {
		return Result{}, err
	}
	return g.Render(ctx, src)
}

func (g *Generator) render(src Source) (Result, error) {
	flat := flatten(src.Image)

	var res Result
	var eg errgroup.Group
	eg.Go(func() error {
		r, err := g.rendition(flat, g.tag)
		if err != nil {
			return fmt.Errorf("tag preview: %w", err)
		}
		res.Tag = r
		return nil
	})
	eg.Go(func() error {
		r, err := g.rendition(flat, g.search)
		if err != nil {
			return fmt.Errorf("search preview: %w", err)
		}
		res.Search = r
		return nil
	})
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (g *Generator) rendition(img image.Image, box Box) (Rendition, error) {
	bounds := img.Bounds()
	w, h := Fit(bounds.Dx(), bounds.Dy(), box)

	out := img
	if w != bounds.Dx() || h != bounds.Dy() {
		out = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(g.quality)); err != nil {
		return Rendition{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Rendition{Data: buf.Bytes(), Width: w, Height: h}, nil
}

// Fit scales (w, h) down by min(box.Width/w, box.Height/h), truncating, and
// leaves images that already fit untouched.
func Fit(w, h int, box Box) (int, int) {
	if w <= box.Width && h <= box.Height {
		return w, h
	}

	var nw, nh int
	if box.Width*h <= box.Height*w {
		nw, nh = box.Width, h*box.Width/w
	} else {
		nw, nh = w*box.Height/h, box.Height
	}
	return max(nw, 1), max(nh, 1)
}

// flatten composites images with transparency onto white; JPEG would
// otherwise render transparent pixels black.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}
