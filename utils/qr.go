package utils

import (
	"bytes"
	"image/png"
	"net/url"

	"github.com/skip2/go-qrcode"
)

const DefaultQRSize = 512

// TableOrderURL is the address printed in a table's QR code.
func TableOrderURL(appURL, tableCode string) string {
	return appURL + "/t/" + url.PathEscape(tableCode)
}

// GenerateQRCode encodes content as a PNG of size x size pixels.
func GenerateQRCode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
