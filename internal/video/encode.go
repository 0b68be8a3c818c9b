package video

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/intervu/live-interview/internal/audio"
)

// ErrEmptyFrame is returned for frames without decoded dimensions
var ErrEmptyFrame = errors.New("frame has no dimensions")

// EncodeFrame downscales img by scale and encodes it as a base64 JPEG blob
func EncodeFrame(img image.Image, scale float64, quality int) (audio.Blob, error) {
	if img == nil {
		return audio.Blob{}, ErrEmptyFrame
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return audio.Blob{}, ErrEmptyFrame
	}
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality}); err != nil {
		return audio.Blob{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return audio.Blob{
		MIMEType: audio.JPEGMimeType,
		Data:     base64.StdEncoding.EncodeToString(out.Bytes()),
	}, nil
}
