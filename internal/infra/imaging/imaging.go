// Package imaging validates captured photos before they reach the collaborator.
package imaging

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"

	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes bounds an uploaded photo.
const DefaultMaxBytes = 8 << 20

// Info describes a decoded photo header.
type Info struct {
	Format   string
	MIMEType string
	Width    int
	Height   int
	Ref      string
}

var mimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// Inspect decodes the image header and derives a content reference.
// The pixel data is not decoded.
func Inspect(data []byte, maxBytes int) (Info, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) == 0 {
		return Info{}, &domain.ErrValidation{Field: "photo", Message: "photo is empty"}
	}
	if len(data) > maxBytes {
		return Info{}, &domain.ErrValidation{
			Field:   "photo",
			Message: fmt.Sprintf("photo is %d bytes, limit is %d", len(data), maxBytes),
		}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, &domain.ErrValidation{Field: "photo", Message: "unsupported or corrupt image"}
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return Info{}, &domain.ErrValidation{Field: "photo", Message: "image has no pixels"}
	}

	return Info{
		Format:   format,
		MIMEType: mimeTypes[format],
		Width:    cfg.Width,
		Height:   cfg.Height,
		Ref:      Ref(data),
	}, nil
}

// Ref is the hex BLAKE2b-256 digest of the photo bytes.
func Ref(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Payload builds the collaborator payload for a validated photo.
func (i Info) Payload(data []byte) domain.ImagePayload {
	return domain.ImagePayload{Data: data, MIMEType: i.MIMEType, Ref: i.Ref}
}
