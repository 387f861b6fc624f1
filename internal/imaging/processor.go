package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"tabshot/internal/services"
)

// MimeJPEG is the content type of every processed thumbnail.
const MimeJPEG = "image/jpeg"

// Result is a processed thumbnail.
type Result struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
	ByteSize int64
}

// ResizeAndCompress decodes raw (PNG, JPEG, WebP or a data URL carrying one of
// them), scales it to targetWidth preserving the aspect ratio and re-encodes it
// at quality in (0, 1].
func ResizeAndCompress(raw []byte, targetWidth int, quality float64) (Result, error) {
	if targetWidth <= 0 {
		return Result{}, services.Wrap(services.ErrImageProcessing, "imaging", "resize",
			fmt.Sprintf("target width %d must be positive", targetWidth), nil)
	}
	if quality <= 0 || quality > 1 || math.IsNaN(quality) {
		return Result{}, services.Wrap(services.ErrImageProcessing, "imaging", "resize",
			fmt.Sprintf("quality %v outside (0, 1]", quality), nil)
	}

	payload := raw
	if bytes.HasPrefix(raw, []byte("data:")) {
		decoded, _, err := DecodeDataURL(string(raw))
		if err != nil {
			return Result{}, err
		}
		payload = decoded
	}

	src, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return Result{}, services.Wrap(services.ErrImageProcessing, "imaging", "decode", "unsupported or corrupt image", err)
	}
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Result{}, services.Wrap(services.ErrImageProcessing, "imaging", "decode", "image has no pixels", nil)
	}

	targetHeight := TargetHeight(bounds.Dx(), bounds.Dy(), targetWidth)
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	data, err := encodeJPEG(dst, quality)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Data:     data,
		MimeType: MimeJPEG,
		Width:    targetWidth,
		Height:   targetHeight,
		ByteSize: int64(len(data)),
	}, nil
}

// TargetHeight returns round(targetWidth * height / width), never below 1.
func TargetHeight(width, height, targetWidth int) int {
	h := int(math.Round(float64(targetWidth) * float64(height) / float64(width)))
	if h < 1 {
		h = 1
	}
	return h
}

func encodeJPEG(img image.Image, quality float64) ([]byte, error) {
	q := int(math.Round(quality * 100))
	q = min(max(q, 1), 100)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, services.Wrap(services.ErrImageProcessing, "imaging", "encode", "jpeg encode failed", err)
	}
	return buf.Bytes(), nil
}

// DecodeDataURL extracts the payload and media type of a base64 data URL.
func DecodeDataURL(value string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return nil, "", services.Wrap(services.ErrImageProcessing, "imaging", "data url", "missing data: prefix", nil)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", services.Wrap(services.ErrImageProcessing, "imaging", "data url", "missing payload separator", nil)
	}
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", services.Wrap(services.ErrImageProcessing, "imaging", "data url", "payload is not base64", nil)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", services.Wrap(services.ErrImageProcessing, "imaging", "data url", "invalid base64", err)
	}
	return data, mime, nil
}

// EncodeDataURL renders data as a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Inspect reads the dimensions and media type of an encoded image without
// decoding its pixels.
func Inspect(data []byte) (width, height int, mime string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", services.Wrap(services.ErrImageProcessing, "imaging", "inspect", "unsupported or corrupt image", err)
	}
	return cfg.Width, cfg.Height, "image/" + format, nil
}
