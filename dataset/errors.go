package dataset

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedAnnotation is returned for annotation records that cannot
	// be turned into polygons.
	ErrMalformedAnnotation = errors.New("malformed annotation")

	// ErrDimensionMismatch is returned when an image and its truth mask do
	// not have the same raw dimensions.
	ErrDimensionMismatch = errors.New("image and truth dimensions differ")
)

// PairMismatchError reports an images/truth folder pair that cannot be
// matched one to one. Index is -1 for a count mismatch. Only names the
// side (images or truth) holding a subset directory the other side lacks.
type PairMismatchError struct {
	Subset string
	Images int
	Truths int
	Index  int
	Image  string
	Truth  string
	Only   string
}

func (e *PairMismatchError) Error() string {
	if e.Only != "" {
		return fmt.Sprintf("subset %q exists only under %s/", e.Subset, e.Only)
	}
	if e.Index < 0 {
		return fmt.Sprintf("subset %q: %d images but %d truth masks", e.Subset, e.Images, e.Truths)
	}
	return fmt.Sprintf("subset %q: pair %d mismatch: image %q vs truth %q", e.Subset, e.Index, e.Image, e.Truth)
}
