// Package codec converts raw image bytes between the lossy storage codec
// (JPEG at a fixed quality) and the lossless export codec (PNG). It also
// sniffs content types from magic bytes when no container hint is present.
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	_ "image/gif" // register decoder

	_ "golang.org/x/image/webp" // register decoder

	"github.com/artbox-app/artbox/internal/log"
	"github.com/artbox-app/artbox/internal/models"
)

// Content types produced by Encode and the transcoders.
const (
	TypePNG    = "image/png"
	TypeJPEG   = "image/jpeg"
	TypeWebP   = "image/webp"
	TypeGIF    = "image/gif"
	TypeBinary = "application/octet-stream"
)

// StorageQuality is the fixed JPEG quality of the storage codec.
const StorageQuality = 85

// ErrUndecodable is returned when export transcoding cannot decode the
// source blob at all.
var ErrUndecodable = errors.New("codec: source image is not decodable")

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	gif87     = []byte("GIF87a")
	gif89     = []byte("GIF89a")
	riff      = []byte("RIFF")
	webpTag   = []byte("WEBP")
)

// Encode normalizes raw upload bytes into (payload, contentType). A data-URL
// container prefix, when present, is stripped and its declared type trusted;
// otherwise the first bytes are inspected for known format signatures.
// Unrecognized payloads pass through as application/octet-stream.
func Encode(raw []byte) ([]byte, string) {
	if payload, contentType, ok := stripDataURL(raw); ok {
		return payload, contentType
	}
	return raw, Sniff(raw)
}

// Sniff inspects magic bytes and returns the detected content type.
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return TypePNG
	case bytes.HasPrefix(data, jpegMagic):
		return TypeJPEG
	case len(data) >= 12 && bytes.HasPrefix(data, riff) && bytes.Equal(data[8:12], webpTag):
		return TypeWebP
	case bytes.HasPrefix(data, gif87), bytes.HasPrefix(data, gif89):
		return TypeGIF
	default:
		return TypeBinary
	}
}

// stripDataURL parses a "data:<type>;base64,<payload>" container. The
// declared media type wins over sniffing.
func stripDataURL(raw []byte) ([]byte, string, bool) {
	const prefix = "data:"
	if !bytes.HasPrefix(raw, []byte(prefix)) {
		return nil, "", false
	}
	s := string(raw)
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return nil, "", false
	}
	header := s[len(prefix):comma]
	contentType := header
	if semi := strings.IndexByte(header, ';'); semi >= 0 {
		contentType = header[:semi]
	}
	if contentType == "" {
		contentType = TypeBinary
	}

	body := s[comma+1:]
	if strings.Contains(header, "base64") {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			// Broken container: fall back to sniffing the raw bytes.
			return nil, "", false
		}
		return decoded, contentType, true
	}
	return []byte(body), contentType, true
}

// ToStorage transcodes a blob to the lossy storage codec. Transcode failure
// is never an error: the original blob is returned unchanged so storage
// correctness does not depend on the codec. Already-JPEG blobs pass through.
func ToStorage(blob models.ImageBlob) models.ImageBlob {
	if blob.ContentType == TypeJPEG {
		return blob
	}

	img, err := decode(blob.Data)
	if err != nil {
		log.Errorf("codec: storage transcode of %s skipped: %v", blob.UUID, err)
		return blob
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: StorageQuality}); err != nil {
		log.Errorf("codec: jpeg encode of %s failed: %v", blob.UUID, err)
		return blob
	}

	out := blob
	out.Data = buf.Bytes()
	out.ContentType = TypeJPEG
	return out
}

// ToExport transcodes a blob to the lossless export codec for download.
// Unlike ToStorage this fails loudly, but only when the source cannot be
// decoded at all.
func ToExport(blob models.ImageBlob) (models.ImageBlob, error) {
	if blob.ContentType == TypePNG {
		return blob, nil
	}

	img, err := decode(blob.Data)
	if err != nil {
		return models.ImageBlob{}, fmt.Errorf("%w: %s: %v", ErrUndecodable, blob.UUID, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return models.ImageBlob{}, fmt.Errorf("export encode %s: %w", blob.UUID, err)
	}

	out := blob
	out.Data = buf.Bytes()
	out.ContentType = TypePNG
	return out, nil
}

// decode runs the registered image decoders (png, jpeg, gif, webp) against
// the payload.
func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}
