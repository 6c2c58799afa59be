package pdf

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRDataURI encodes payload as a size x size PNG data URI
func QRDataURI(payload string, size int) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("pdf: empty qr payload")
	}
	if size <= 0 {
		size = 160
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("pdf: encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
