package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/artbox-app/artbox/internal/models"
)

// testImage renders a small gradient so lossy encoders have real content.
func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 11), 128, 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngBytes(t, 4, 4), TypePNG},
		{"jpeg", jpegBytes(t, 4, 4), TypeJPEG},
		{"gif", []byte("GIF89a\x01\x00"), TypeGIF},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00WEBP"), 0x56), TypeWebP},
		{"riff-not-webp", []byte("RIFF\x00\x00\x00\x00WAVE"), TypeBinary},
		{"garbage", []byte("not an image"), TypeBinary},
		{"empty", nil, TypeBinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncode_DataURL(t *testing.T) {
	payload := pngBytes(t, 4, 4)
	raw := []byte("data:image/png;base64," + base64.StdEncoding.EncodeToString(payload))

	got, contentType := Encode(raw)
	if contentType != TypePNG {
		t.Errorf("contentType = %q, want %q", contentType, TypePNG)
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload bytes altered by container strip")
	}
}

func TestEncode_DataURLDeclaredTypeWins(t *testing.T) {
	// The container says webp even though the bytes are png; the declared
	// type is trusted.
	payload := pngBytes(t, 4, 4)
	raw := []byte("data:image/webp;base64," + base64.StdEncoding.EncodeToString(payload))

	_, contentType := Encode(raw)
	if contentType != TypeWebP {
		t.Errorf("contentType = %q, want declared %q", contentType, TypeWebP)
	}
}

func TestEncode_BrokenDataURLFallsBack(t *testing.T) {
	raw := []byte("data:image/png;base64,!!!not-base64!!!")
	got, contentType := Encode(raw)
	if contentType != TypeBinary {
		t.Errorf("contentType = %q, want %q", contentType, TypeBinary)
	}
	if !bytes.Equal(got, raw) {
		t.Error("broken container should pass raw bytes through")
	}
}

func TestEncode_BareBytes(t *testing.T) {
	payload := jpegBytes(t, 4, 4)
	got, contentType := Encode(payload)
	if contentType != TypeJPEG {
		t.Errorf("contentType = %q, want %q", contentType, TypeJPEG)
	}
	if !bytes.Equal(got, payload) {
		t.Error("bare payload altered")
	}
}

func TestToStorage_TranscodesPNG(t *testing.T) {
	blob := models.ImageBlob{UUID: "b1", Data: pngBytes(t, 32, 16), ContentType: TypePNG}

	out := ToStorage(blob)
	if out.ContentType != TypeJPEG {
		t.Fatalf("ContentType = %q, want %q", out.ContentType, TypeJPEG)
	}

	img, format, err := image.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode storage output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
		t.Errorf("dimensions = %v, want 32x16", img.Bounds())
	}
}

func TestToStorage_JPEGPassesThrough(t *testing.T) {
	data := jpegBytes(t, 8, 8)
	blob := models.ImageBlob{UUID: "b1", Data: data, ContentType: TypeJPEG}

	out := ToStorage(blob)
	if !bytes.Equal(out.Data, data) {
		t.Error("already-jpeg payload was re-encoded")
	}
}

func TestToStorage_UndecodableKeepsOriginal(t *testing.T) {
	data := []byte("definitely not an image")
	blob := models.ImageBlob{UUID: "b1", Data: data, ContentType: TypeBinary}

	out := ToStorage(blob)
	if !bytes.Equal(out.Data, data) || out.ContentType != TypeBinary {
		t.Error("transcode failure must return the blob unchanged")
	}
}

func TestToExport_TranscodesJPEG(t *testing.T) {
	blob := models.ImageBlob{UUID: "b1", Data: jpegBytes(t, 20, 10), ContentType: TypeJPEG}

	out, err := ToExport(blob)
	if err != nil {
		t.Fatalf("ToExport() error = %v", err)
	}
	if out.ContentType != TypePNG {
		t.Fatalf("ContentType = %q, want %q", out.ContentType, TypePNG)
	}

	img, format, err := image.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode export output: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("dimensions = %v, want 20x10", img.Bounds())
	}
}

func TestToExport_PNGPassesThrough(t *testing.T) {
	data := pngBytes(t, 8, 8)
	blob := models.ImageBlob{UUID: "b1", Data: data, ContentType: TypePNG}

	out, err := ToExport(blob)
	if err != nil {
		t.Fatalf("ToExport() error = %v", err)
	}
	if !bytes.Equal(out.Data, data) {
		t.Error("already-png payload was re-encoded")
	}
}

func TestToExport_Undecodable(t *testing.T) {
	blob := models.ImageBlob{UUID: "b1", Data: []byte("junk"), ContentType: TypeBinary}

	_, err := ToExport(blob)
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("error = %v, want ErrUndecodable", err)
	}
}

func TestStorageExportRoundTrip(t *testing.T) {
	// PNG in, JPEG at rest, PNG out. Dimensions survive both hops; pixel
	// data is allowed to drift (lossy storage).
	original := models.ImageBlob{UUID: "b1", Data: pngBytes(t, 48, 48), ContentType: TypePNG}

	stored := ToStorage(original)
	exported, err := ToExport(stored)
	if err != nil {
		t.Fatalf("ToExport() error = %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(exported.Data))
	if err != nil {
		t.Fatalf("decode round-trip output: %v", err)
	}
	if img.Bounds().Dx() != 48 || img.Bounds().Dy() != 48 {
		t.Errorf("dimensions = %v, want 48x48", img.Bounds())
	}
}
