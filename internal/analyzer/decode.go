package analyzer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxImagePixels caps width*height of an upload before the pixel buffer is
// allocated. Matches the decompression-bomb limit of common imaging stacks.
const maxImagePixels = 2 * 89478485

// decodeImage reads the header first so oversized or empty images are
// rejected without decoding their pixel data.
func decodeImage(r io.Reader) (image.Image, string, error) {
	var head bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("%w: empty %s image (%dx%d)", ErrDecode, format, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, format, fmt.Errorf("%w: %s image %dx%d exceeds %d pixels", ErrDecode, format, cfg.Width, cfg.Height, maxImagePixels)
	}
	img, format, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, format, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, format, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}
	return img, format, nil
}
