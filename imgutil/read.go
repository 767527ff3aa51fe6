package imgutil

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/tiff"
	"github.com/pkg/errors"
)

// Extensions lists the supported image file extensions in lower case.
var Extensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ReadImage reads image from file.
func ReadImage(filename string) (image.Image, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	defer f.Close()

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".tiff", ".tif":
		img, err = tiff.Decode(f)
	default:
		return nil, errors.Errorf("unsupported image format: %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", filename)
	}

	return img, nil
}

// WritePNG encodes img to a png file, creating parent directories.
func WritePNG(filename string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.Wrap(err, "write png")
	}
	out, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "write png")
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return errors.Wrapf(err, "encode %s", filename)
	}

	return out.Close()
}
