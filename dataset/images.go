package dataset

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hydrocam/waterseg/imgutil"
)

// LoadImages loads every image of dir as a size x size frame, single
// channel when gray is set.
func LoadImages(dir string, size int, gray bool) ([]imgutil.Frame, error) {
	names, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.Errorf("no image found in %s", dir)
	}

	channels := 3
	if gray {
		channels = 1
	}
	frames := make([]imgutil.Frame, 0, len(names))
	for _, name := range names {
		img, err := imgutil.ReadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		frames = append(frames, imgutil.ToFrame(imgutil.ResizeWithPad(img, size), channels))
	}

	return frames, nil
}
