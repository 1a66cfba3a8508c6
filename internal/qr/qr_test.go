package qr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeQR(t *testing.T, text string) []byte {
	t.Helper()

	matrix, err := qrcode.NewQRCodeWriter().Encode(
		text, gozxing.BarcodeFormat_QR_CODE, 256, 256, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, matrix))
	return buf.Bytes()
}

func TestDecodeRoundTrip(t *testing.T) {
	data := encodeQR(t, "SECRETXYZ")

	text, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "SECRETXYZ", text)
}

func TestDecodeProvisioningURI(t *testing.T) {
	uri := "otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example"
	data := encodeQR(t, uri)

	text, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, uri, text)
}

func TestDecodeImageWithoutCode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}

	_, err := DecodeImage(img)
	assert.ErrorIs(t, err, ErrNoQRCode)
}

func TestDecodeGarbageBytes(t *testing.T) {
	_, err := DecodeBytes([]byte("definitely not an image"))
	assert.Error(t, err)
}
