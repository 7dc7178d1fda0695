package share

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// QRSize is the side of the generated PNG in pixels.
const QRSize = 256

// VideoURL builds the public page address of a video, {base}/video/{id}.
// It returns "" when no base is configured.
func VideoURL(base, id string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/video/" + url.PathEscape(id)
}

// WriteQR renders link as a PNG QR code at path.
func WriteQR(link, path string) error {
	if link == "" {
		return fmt.Errorf("qr: empty link")
	}
	if err := qrcode.WriteFile(link, qrcode.Medium, QRSize, path); err != nil {
		return fmt.Errorf("qr %s: %w", path, err)
	}
	return nil
}
