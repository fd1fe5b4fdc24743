package embedding

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
)

// ImageInfo describes an image buffer without decoding its pixels.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// SniffImage reads only the image header. Buffers that are empty or in an
// unsupported format fail as embedding failures so no provider call is wasted.
func SniffImage(buf []byte) (ImageInfo, error) {
	if len(buf) == 0 {
		return ImageInfo{}, geoerrors.NewEmbeddingFailure("sniff_image", "empty image buffer")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return ImageInfo{}, geoerrors.WrapEmbeddingFailure(err, "sniff_image", "unreadable image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, geoerrors.NewEmbeddingFailure("sniff_image", "image has no pixels")
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
