package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hydrocam/waterseg/imgutil"
)

// ListImages returns the sorted names of the image files in dir.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "list images")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !imgutil.IsImage(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	return names, nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func subsetDirs(root, side string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, side))
	if err != nil {
		return nil, errors.Wrap(err, "list subsets")
	}
	var subsets []string
	for _, e := range entries {
		if e.IsDir() {
			subsets = append(subsets, e.Name())
		}
	}
	sort.Strings(subsets)

	return subsets, nil
}

// Subsets returns the sorted subset directory names shared by root/images
// and root/truth. A subset present on one side only is a PairMismatchError.
func Subsets(root string) ([]string, error) {
	images, err := subsetDirs(root, "images")
	if err != nil {
		return nil, err
	}
	truths, err := subsetDirs(root, "truth")
	if err != nil {
		return nil, err
	}

	i, j := 0, 0
	for i < len(images) || j < len(truths) {
		switch {
		case j >= len(truths) || (i < len(images) && images[i] < truths[j]):
			return nil, &PairMismatchError{Subset: images[i], Index: -1, Only: "images"}
		case i >= len(images) || truths[j] < images[i]:
			return nil, &PairMismatchError{Subset: truths[j], Index: -1, Only: "truth"}
		}
		i++
		j++
	}

	return truths, nil
}

// LoadFolderPairs loads a tree of `images/<subset>/*` and matching
// `truth/<subset>/*` masks. Files are paired in sorted order and must have
// the same stem; truth masks are converted to grayscale.
func LoadFolderPairs(root string, size int) ([]Pair, error) {
	subsets, err := Subsets(root)
	if err != nil {
		return nil, err
	}

	var pairs []Pair
	for _, subset := range subsets {
		imgDir := filepath.Join(root, "images", subset)
		truthDir := filepath.Join(root, "truth", subset)
		images, err := ListImages(imgDir)
		if err != nil {
			return nil, err
		}
		truths, err := ListImages(truthDir)
		if err != nil {
			return nil, err
		}
		if len(images) != len(truths) {
			return nil, &PairMismatchError{Subset: subset, Images: len(images), Truths: len(truths), Index: -1}
		}

		for i := range images {
			if stem(images[i]) != stem(truths[i]) {
				return nil, &PairMismatchError{
					Subset: subset,
					Images: len(images),
					Truths: len(truths),
					Index:  i,
					Image:  images[i],
					Truth:  truths[i],
				}
			}
			p, err := loadPair(filepath.Join(imgDir, images[i]), filepath.Join(truthDir, truths[i]), size)
			if err != nil {
				return nil, err
			}
			p.Name = filepath.Join(subset, images[i])
			pairs = append(pairs, p)
		}
		log.WithFields(log.Fields{"subset": subset, "pairs": len(images)}).Info("loaded subset")
	}

	return pairs, nil
}

func loadPair(imgPath, truthPath string, size int) (Pair, error) {
	img, err := imgutil.ReadImage(imgPath)
	if err != nil {
		return Pair{}, err
	}
	truth, err := imgutil.ReadImage(truthPath)
	if err != nil {
		return Pair{}, err
	}
	if img.Bounds().Size() != truth.Bounds().Size() {
		return Pair{}, errors.Wrapf(ErrDimensionMismatch, "%s %v vs %s %v", imgPath, img.Bounds().Size(), truthPath, truth.Bounds().Size())
	}

	return NewPair("", img, imaging.Grayscale(truth), size), nil
}
