// Package sniffer recognises the raster formats the preview pipeline can
// decode by their leading bytes.
package sniffer

import (
	"bytes"
	"errors"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeBMP  MediaType = "bmp"
	TypeTIFF MediaType = "tiff"
)

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
	// Ext is the conventional file extension, dot included.
	Ext string
}

type signature struct {
	result Result
	match  func(head []byte) bool
}

var signatures = []signature{
	{Result{TypeJPEG, "image/jpeg", ".jpg"}, prefix(0xff, 0xd8, 0xff)},
	{Result{TypePNG, "image/png", ".png"}, prefix(0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n')},
	{Result{TypeGIF, "image/gif", ".gif"}, anyOf(prefix('G', 'I', 'F', '8', '7', 'a'), prefix('G', 'I', 'F', '8', '9', 'a'))},
	{Result{TypeWEBP, "image/webp", ".webp"}, isWEBP},
	{Result{TypeBMP, "image/bmp", ".bmp"}, func(head []byte) bool { return len(head) >= 14 && head[0] == 'B' && head[1] == 'M' }},
	{Result{TypeTIFF, "image/tiff", ".tiff"}, anyOf(prefix('I', 'I', 0x2a, 0x00), prefix('M', 'M', 0x00, 0x2a))},
}

// DetectHead identifies the format from the first bytes of a file.
func DetectHead(head []byte) (Result, error) {
	for _, sig := range signatures {
		if sig.match(head) {
			return sig.result, nil
		}
	}
	return Result{}, ErrUnknownType
}

func prefix(magic ...byte) func([]byte) bool {
	return func(head []byte) bool {
		return bytes.HasPrefix(head, magic)
	}
}

func anyOf(matchers ...func([]byte) bool) func([]byte) bool {
	return func(head []byte) bool {
		for _, m := range matchers {
			if m(head) {
				return true
			}
		}
		return false
	}
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}
