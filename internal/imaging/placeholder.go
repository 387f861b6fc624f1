package imaging

import (
	"image"
	"image/color"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	placeholderBackground = color.RGBA{0xf8, 0xf9, 0xfa, 0xff}
	placeholderIcon       = color.RGBA{0x9a, 0xa0, 0xa6, 0xff}
	placeholderTitle      = color.RGBA{0x20, 0x21, 0x24, 0xff}
	placeholderDetail     = color.RGBA{0x5f, 0x63, 0x68, 0xff}
)

// Placeholder renders the card shown for pages whose capture failed.
func Placeholder(message, url string, width, height int) ([]byte, error) {
	if width <= 0 {
		width = 600
	}
	if height <= 0 {
		height = 400
	}
	if message == "" {
		message = "ERR_CONNECTION_FAILED"
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderBackground), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	maxChars := (width - 40) / face.Advance
	mid := height / 2
	drawCentered(img, face, ":(", mid-40, placeholderIcon)
	drawCentered(img, face, "This site can't be reached", mid+10, placeholderTitle)
	drawCentered(img, face, truncate(message, maxChars), mid+40, placeholderDetail)
	drawCentered(img, face, truncate(url, maxChars), mid+70, placeholderDetail)

	return encodeJPEG(img, 0.8)
}

func drawCentered(dst *image.RGBA, face *basicfont.Face, text string, baseline int, c color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	width := d.MeasureString(text).Round()
	x := (dst.Bounds().Dx() - width) / 2
	d.Dot = fixed.P(max(x, 0), baseline)
	d.DrawString(text)
}

func truncate(s string, limit int) string {
	if limit <= 3 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}
