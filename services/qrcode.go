package services

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// CodeGenerator renders the scannable artifact for a unit serial.
type CodeGenerator func(content string) (string, error)

// QRCode returns a base64 PNG QR code for content.
func QRCode(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
