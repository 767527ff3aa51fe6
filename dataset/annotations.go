package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hydrocam/waterseg/imgutil"
)

// DefaultAnnotationFile is the annotation file name looked up in a dataset
// directory.
const DefaultAnnotationFile = "segmentation.json"

// Annotation is one image record of a VIA style export.
type Annotation struct {
	Key      string
	Filename string
	Regions  []imgutil.Polygon
}

type viaRecord struct {
	Filename string          `json:"filename"`
	Regions  json.RawMessage `json:"regions"`
}

type viaRegion struct {
	Shape *viaShape `json:"shape_attributes"`
}

type viaShape struct {
	Name    string    `json:"name"`
	PointsX []float64 `json:"all_points_x"`
	PointsY []float64 `json:"all_points_y"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Width   float64   `json:"width"`
	Height  float64   `json:"height"`
}

// ReadAnnotations parses a VIA style annotation file. Records are returned
// in sorted key order.
func ReadAnnotations(path string) ([]Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read annotations")
	}

	var records map[string]viaRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrapf(ErrMalformedAnnotation, "%s: %v", path, err)
	}

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	anns := make([]Annotation, 0, len(keys))
	for _, k := range keys {
		rec := records[k]
		regions, err := parseRegions(rec.Regions)
		if err != nil {
			return nil, errors.Wrapf(err, "record %q", k)
		}
		anns = append(anns, Annotation{
			Key:      k,
			Filename: rec.Filename,
			Regions:  regions,
		})
	}

	return anns, nil
}

// parseRegions accepts regions as an object keyed by region id (VIA 1.x) or
// as an array (VIA 2.x).
func parseRegions(raw json.RawMessage) ([]imgutil.Polygon, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 || trimmed == "null" {
		return nil, errors.Wrap(ErrMalformedAnnotation, "missing regions")
	}

	var regions []viaRegion
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(raw, &regions); err != nil {
			return nil, errors.Wrapf(ErrMalformedAnnotation, "regions: %v", err)
		}
	case '{':
		var byID map[string]viaRegion
		if err := json.Unmarshal(raw, &byID); err != nil {
			return nil, errors.Wrapf(ErrMalformedAnnotation, "regions: %v", err)
		}
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			regions = append(regions, byID[id])
		}
	default:
		return nil, errors.Wrap(ErrMalformedAnnotation, "regions must be an object or an array")
	}

	polygons := make([]imgutil.Polygon, 0, len(regions))
	for i, r := range regions {
		p, err := r.polygon()
		if err != nil {
			return nil, errors.Wrapf(err, "region %d", i)
		}
		polygons = append(polygons, p)
	}

	return polygons, nil
}

func (r viaRegion) polygon() (imgutil.Polygon, error) {
	s := r.Shape
	if s == nil {
		return imgutil.Polygon{}, errors.Wrap(ErrMalformedAnnotation, "missing shape_attributes")
	}
	switch s.Name {
	case "", "polygon", "polyline":
		if len(s.PointsX) != len(s.PointsY) {
			return imgutil.Polygon{}, errors.Wrapf(ErrMalformedAnnotation, "%d x points but %d y points", len(s.PointsX), len(s.PointsY))
		}
		return imgutil.Polygon{X: s.PointsX, Y: s.PointsY}, nil
	case "rect":
		return imgutil.Rect(s.X, s.Y, s.Width, s.Height), nil
	default:
		return imgutil.Polygon{}, errors.Wrapf(ErrMalformedAnnotation, "unsupported shape %q", s.Name)
	}
}

// ImagePath resolves the image file of an annotation key. VIA appends the
// file size to the name, so everything after the image extension is dropped:
// `img.png123456` gives `img.png`.
func ImagePath(dir, key string) string {
	lower := strings.ToLower(key)
	best := -1
	var ext string
	for _, e := range imgutil.Extensions {
		i := strings.Index(lower, e)
		if i < 0 {
			continue
		}
		// `.tiff` wins over its `.tif` prefix.
		if best < 0 || i < best || (i == best && len(e) > len(ext)) {
			best, ext = i, e
		}
	}
	name := key
	if best >= 0 {
		name = key[:best+len(ext)]
	}

	return filepath.Join(dir, name)
}

// Path returns the image file of the annotation in dir. The recorded file
// name is used when present, the key otherwise.
func (a Annotation) Path(dir string) string {
	if a.Filename != "" {
		return filepath.Join(dir, a.Filename)
	}
	return ImagePath(dir, a.Key)
}

// LoadAnnotated loads the annotated images of dir with their rasterized
// polygon masks. annotationFile is relative to dir.
func LoadAnnotated(dir, annotationFile string, size int) ([]Pair, error) {
	if annotationFile == "" {
		annotationFile = DefaultAnnotationFile
	}
	anns, err := ReadAnnotations(filepath.Join(dir, annotationFile))
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(anns))
	for _, a := range anns {
		path := a.Path(dir)
		img, err := imgutil.ReadImage(path)
		if err != nil {
			return nil, errors.Wrapf(err, "annotation %q", a.Key)
		}
		b := img.Bounds()
		mask := imgutil.FillPolygons(b.Dx(), b.Dy(), a.Regions)
		pairs = append(pairs, NewPair(filepath.Base(path), img, mask, size))
	}
	log.WithFields(log.Fields{"dir": dir, "images": len(pairs)}).Info("loaded annotated dataset")

	return pairs, nil
}
