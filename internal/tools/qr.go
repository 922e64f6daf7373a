package tools

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

var ErrEmptyContent = errors.New("nothing to encode")

const DefaultQRSize = 256

// QRCode renders content as a size x size PNG.
func QRCode(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("tools.QRCode: %w", err)
	}
	return png, nil
}
