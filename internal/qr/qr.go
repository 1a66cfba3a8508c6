// Package qr extracts text payloads from QR code images sent as photos.
package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoQRCode is returned when the image decodes fine but contains no
// recognizable QR code.
var ErrNoQRCode = errors.New("qr: no code found in image")

// Decode reads an image (JPEG or PNG, matching what Telegram serves for
// photo downloads) and returns the text of the QR code it contains.
func Decode(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return DecodeImage(img)
}

// DecodeBytes is a convenience wrapper over Decode for in-memory payloads.
func DecodeBytes(data []byte) (string, error) {
	return Decode(bytes.NewReader(data))
}

// DecodeImage scans an already decoded image for a QR code.
func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("prepare bitmap: %w", err)
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", ErrNoQRCode
	}
	return result.GetText(), nil
}
