package inference

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// decodeFile reads an image honouring its EXIF orientation and reports the
// format name registered with the image package.
func decodeFile(path string) (image.Image, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return decodeBytes(data)
}

func decodeBytes(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("unrecognized image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s image: %w", format, err)
	}
	return img, format, nil
}

// outputFormat chooses the encoding for filename: its extension when known,
// otherwise the format the source was decoded from, otherwise JPEG.
func outputFormat(filename, sourceFormat string) string {
	for _, candidate := range []string{filepath.Ext(filename), sourceFormat} {
		candidate = strings.ToLower(strings.TrimPrefix(candidate, "."))
		if candidate == "webp" {
			return candidate
		}
		if f, err := imaging.FormatFromExtension(candidate); err == nil {
			return strings.ToLower(f.String())
		}
	}
	return "jpeg"
}

// encodeImage writes img to w in the given format.
func encodeImage(w io.Writer, img image.Image, format string, quality int) error {
	if format == "webp" {
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	}

	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, f, imaging.JPEGQuality(quality))
}

// writeAtomic encodes img into a temporary file in the target directory and
// renames it over path, so readers never see a partial result.
func writeAtomic(path string, img image.Image, format string, quality int) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".render-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := encodeImage(tmp, img, format, quality); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
