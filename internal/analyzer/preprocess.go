package analyzer

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/nfnt/resize"
)

// PIL resampling filter codes as stored in preprocessor_config.json.
const (
	resampleNearest  = 0
	resampleLanczos  = 1
	resampleBilinear = 2
	resampleBicubic  = 3
)

// Processor turns a decoded image into the model's input tensor.
type Processor struct {
	// Width and Height are the fixed session input; every image is resized to them.
	Width, Height int
	Filter        resize.InterpolationFunction
	// Rescale multiplies raw 0..255 channel values (1/255 for most models).
	Rescale   float32
	Normalize bool
	Mean, Std [3]float32
}

// DefaultProcessor matches the ViT image processor defaults.
func DefaultProcessor() Processor {
	return Processor{
		Width:     224,
		Height:    224,
		Filter:    resize.Bilinear,
		Rescale:   1.0 / 255,
		Normalize: true,
		Mean:      [3]float32{0.5, 0.5, 0.5},
		Std:       [3]float32{0.5, 0.5, 0.5},
	}
}

type processorConfig struct {
	Size          json.RawMessage `json:"size"`
	Resample      *int            `json:"resample"`
	DoRescale     *bool           `json:"do_rescale"`
	RescaleFactor *float64        `json:"rescale_factor"`
	DoNormalize   *bool           `json:"do_normalize"`
	ImageMean     []float32       `json:"image_mean"`
	ImageStd      []float32       `json:"image_std"`
}

// LoadProcessor reads a preprocessor_config.json; an empty path yields DefaultProcessor.
func LoadProcessor(path string) (Processor, error) {
	if path == "" {
		return DefaultProcessor(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Processor{}, fmt.Errorf("read preprocessor config: %w", err)
	}
	return ParseProcessor(b)
}

// ParseProcessor overlays a preprocessor config onto DefaultProcessor.
// size may be {"height","width"}, {"shortest_edge"} (treated as a square) or a bare int.
func ParseProcessor(b []byte) (Processor, error) {
	p := DefaultProcessor()
	var pc processorConfig
	if err := json.Unmarshal(b, &pc); err != nil {
		return p, fmt.Errorf("parse preprocessor config: %w", err)
	}
	// do_resize is ignored: sessions take a fixed [1,3,H,W] input.
	if len(pc.Size) > 0 {
		w, h, err := parseSize(pc.Size)
		if err != nil {
			return p, err
		}
		p.Width, p.Height = w, h
	}
	if pc.Resample != nil {
		p.Filter = filterFor(*pc.Resample)
	}
	if pc.DoRescale != nil && !*pc.DoRescale {
		p.Rescale = 1
	} else if pc.RescaleFactor != nil {
		p.Rescale = float32(*pc.RescaleFactor)
	}
	if pc.DoNormalize != nil {
		p.Normalize = *pc.DoNormalize
	}
	if pc.ImageMean != nil {
		if len(pc.ImageMean) != 3 {
			return p, fmt.Errorf("image_mean needs 3 values, got %d", len(pc.ImageMean))
		}
		copy(p.Mean[:], pc.ImageMean)
	}
	if pc.ImageStd != nil {
		if len(pc.ImageStd) != 3 {
			return p, fmt.Errorf("image_std needs 3 values, got %d", len(pc.ImageStd))
		}
		copy(p.Std[:], pc.ImageStd)
		for _, s := range p.Std {
			if s == 0 {
				return p, fmt.Errorf("image_std must be non-zero")
			}
		}
	}
	return p, nil
}

func parseSize(raw json.RawMessage) (int, int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n <= 0 {
			return 0, 0, fmt.Errorf("invalid size %d", n)
		}
		return n, n, nil
	}
	var s struct {
		Height       int `json:"height"`
		Width        int `json:"width"`
		ShortestEdge int `json:"shortest_edge"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, 0, fmt.Errorf("parse size: %w", err)
	}
	switch {
	case s.Height > 0 && s.Width > 0:
		return s.Width, s.Height, nil
	case s.ShortestEdge > 0:
		return s.ShortestEdge, s.ShortestEdge, nil
	}
	return 0, 0, fmt.Errorf("size has no usable dimensions: %s", string(raw))
}

func filterFor(code int) resize.InterpolationFunction {
	switch code {
	case resampleNearest:
		return resize.NearestNeighbor
	case resampleLanczos:
		return resize.Lanczos3
	case resampleBicubic:
		return resize.Bicubic
	case resampleBilinear:
		return resize.Bilinear
	default:
		return resize.Bilinear
	}
}

// TensorLen is the number of float32 values Transform produces.
func (p Processor) TensorLen() int { return 3 * p.Width * p.Height }

// Transform converts img to a normalized CHW float32 tensor of shape [1,3,H,W].
func (p Processor) Transform(img image.Image) []float32 {
	rgb := toRGB(img)
	if b := rgb.Bounds(); b.Dx() != p.Width || b.Dy() != p.Height {
		rgb = toRGB(resize.Resize(uint(p.Width), uint(p.Height), rgb, p.Filter))
	}
	b := rgb.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := rgb.Pix[y*rgb.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4:]
			for c := 0; c < 3; c++ {
				v := float32(px[c]) * p.Rescale
				if p.Normalize {
					v = (v - p.Mean[c]) / p.Std[c]
				}
				out[c*plane+y*w+x] = v
			}
		}
	}
	return out
}

// toRGB copies img into an opaque RGBA buffer anchored at (0,0). Alpha is
// dropped rather than composited, so stored color values are kept as-is.
func toRGB(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && opaque(rgba) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

func opaque(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}
