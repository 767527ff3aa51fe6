package dataset_test

import (
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hydrocam/waterseg/dataset"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const annotations = `{
  "b.png2048": {
    "filename": "b.png",
    "regions": [
      {"shape_attributes": {"name": "rect", "x": 0, "y": 0, "width": 15, "height": 7}}
    ]
  },
  "a.png1024": {
    "filename": "a.png",
    "regions": {
      "0": {"shape_attributes": {"name": "polygon", "all_points_x": [0, 15, 15, 0], "all_points_y": [0, 0, 15, 15]}}
    }
  }
}`

func TestLoadAnnotated(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 16, 16, color.White)
	writePNG(t, filepath.Join(dir, "b.png"), 16, 16, color.White)
	writeFile(t, filepath.Join(dir, dataset.DefaultAnnotationFile), annotations)

	pairs, err := dataset.LoadAnnotated(dir, "", 8)
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	// sorted keys
	require.Equal(t, "a.png", pairs[0].Name)
	require.Equal(t, "b.png", pairs[1].Name)

	for _, p := range pairs {
		require.Equal(t, 3, p.Image.Channels)
		require.Equal(t, 1, p.Mask.Channels)
		require.Equal(t, 8, p.Mask.Height)
		require.Equal(t, 8, p.Mask.Width)
	}
	fractions := dataset.WaterFraction(pairs)
	require.InDelta(t, 1.0, fractions[0], 1e-9)
	require.InDelta(t, 0.5, fractions[1], 1e-9)
}

func TestLoadAnnotatedErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := dataset.LoadAnnotated(dir, "", 8)
	require.True(t, errors.Is(err, fs.ErrNotExist))

	writeFile(t, filepath.Join(dir, "bad.json"), `{"a.png1": {"regions": {"0": {"shape_attributes": {"all_points_x": [1, 2, 3], "all_points_y": [1]}}}}}`)
	_, err = dataset.LoadAnnotated(dir, "bad.json", 8)
	require.True(t, errors.Is(err, dataset.ErrMalformedAnnotation))

	writeFile(t, filepath.Join(dir, "noregions.json"), `{"a.png1": {"filename": "a.png"}}`)
	_, err = dataset.LoadAnnotated(dir, "noregions.json", 8)
	require.True(t, errors.Is(err, dataset.ErrMalformedAnnotation))

	writeFile(t, filepath.Join(dir, "notjson.json"), `[1, 2`)
	_, err = dataset.LoadAnnotated(dir, "notjson.json", 8)
	require.True(t, errors.Is(err, dataset.ErrMalformedAnnotation))

	writeFile(t, filepath.Join(dir, "missing.json"), `{"ghost.png1": {"regions": []}}`)
	_, err = dataset.LoadAnnotated(dir, "missing.json", 8)
	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestImagePath(t *testing.T) {
	require.Equal(t, filepath.Join("d", "img.png"), dataset.ImagePath("d", "img.png123456"))
	require.Equal(t, filepath.Join("d", "x.JPG"), dataset.ImagePath("d", "x.JPG99"))
	require.Equal(t, filepath.Join("d", "x.tiff"), dataset.ImagePath("d", "x.tiff7"))
	require.Equal(t, filepath.Join("d", "plain"), dataset.ImagePath("d", "plain"))
}

func TestAnnotationPath(t *testing.T) {
	named := dataset.Annotation{Key: "a.jpg.png123", Filename: "a.jpg.png"}
	require.Equal(t, filepath.Join("d", "a.jpg.png"), named.Path("d"))

	unnamed := dataset.Annotation{Key: "img.png42"}
	require.Equal(t, filepath.Join("d", "img.png"), unnamed.Path("d"))
}

func TestLoadAnnotatedUsesFilename(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "shore.jpg.png"), 8, 8, color.White)
	writeFile(t, filepath.Join(dir, dataset.DefaultAnnotationFile), `{
  "shore.jpg.png77": {
    "filename": "shore.jpg.png",
    "regions": [{"shape_attributes": {"name": "rect", "x": 0, "y": 0, "width": 7, "height": 7}}]
  }
}`)

	pairs, err := dataset.LoadAnnotated(dir, "", 8)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	require.Equal(t, "shore.jpg.png", pairs[0].Name)
}

func makeTree(t *testing.T, root string, images, truths []string) {
	for _, n := range images {
		writePNG(t, filepath.Join(root, "images", "lake", n), 12, 6, color.White)
	}
	for _, n := range truths {
		writePNG(t, filepath.Join(root, "truth", "lake", n), 12, 6, color.White)
	}
}

func TestLoadFolderPairs(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root, []string{"002.png", "001.png"}, []string{"001.png", "002.png"})
	writePNG(t, filepath.Join(root, "images", "river", "a.png"), 6, 6, color.White)
	writePNG(t, filepath.Join(root, "truth", "river", "a.png"), 6, 6, color.Black)

	pairs, err := dataset.LoadFolderPairs(root, 8)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	require.Equal(t, filepath.Join("lake", "001.png"), pairs[0].Name)
	require.Equal(t, filepath.Join("lake", "002.png"), pairs[1].Name)
	require.Equal(t, filepath.Join("river", "a.png"), pairs[2].Name)

	s := dataset.Summarize(pairs)
	require.Equal(t, 3, s.Pairs)
	require.Equal(t, 0.0, s.Min)
	require.InDelta(t, 0.5, s.Max, 1e-9) // 12x6 padded into 8x8

	df := dataset.FractionFrame(pairs)
	require.Equal(t, 3, df.Nrow())
}

func TestLoadFolderPairsCountMismatch(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root, []string{"001.png", "002.png"}, []string{"001.png"})

	_, err := dataset.LoadFolderPairs(root, 8)
	var pm *dataset.PairMismatchError
	require.True(t, errors.As(err, &pm))
	require.Equal(t, -1, pm.Index)
	require.Equal(t, 2, pm.Images)
	require.Equal(t, 1, pm.Truths)
}

func TestLoadFolderPairsNameMismatch(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root, []string{"001.png", "002.png"}, []string{"001.png", "003.png"})

	_, err := dataset.LoadFolderPairs(root, 8)
	var pm *dataset.PairMismatchError
	require.True(t, errors.As(err, &pm))
	require.Equal(t, 1, pm.Index)
	require.Equal(t, "002.png", pm.Image)
	require.Equal(t, "003.png", pm.Truth)
}

func TestLoadFolderPairsSubsetMismatch(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root, []string{"001.png"}, []string{"001.png"})
	writePNG(t, filepath.Join(root, "images", "pond", "001.png"), 6, 6, color.White)

	_, err := dataset.LoadFolderPairs(root, 8)
	var pm *dataset.PairMismatchError
	require.True(t, errors.As(err, &pm))
	require.Equal(t, "pond", pm.Subset)
	require.Equal(t, "images", pm.Only)

	root = t.TempDir()
	makeTree(t, root, []string{"001.png"}, []string{"001.png"})
	writePNG(t, filepath.Join(root, "truth", "canal", "001.png"), 6, 6, color.White)

	_, err = dataset.LoadFolderPairs(root, 8)
	require.True(t, errors.As(err, &pm))
	require.Equal(t, "canal", pm.Subset)
	require.Equal(t, "truth", pm.Only)
}

func TestLoadFolderPairsDimensionMismatch(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "images", "lake", "a.png"), 6, 6, color.White)
	writePNG(t, filepath.Join(root, "truth", "lake", "a.png"), 8, 6, color.White)

	_, err := dataset.LoadFolderPairs(root, 8)
	require.True(t, errors.Is(err, dataset.ErrDimensionMismatch))
}

func TestLoadImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 10, 20, color.White)
	writePNG(t, filepath.Join(dir, "b.png"), 20, 20, color.Black)
	writeFile(t, filepath.Join(dir, "notes.txt"), "skip me")

	frames, err := dataset.LoadImages(dir, 16, true)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, 1, frames[0].Channels)
	require.Equal(t, 16, frames[1].Width)

	_, err = dataset.LoadImages(t.TempDir(), 16, true)
	require.Error(t, err)
}

func TestSplit(t *testing.T) {
	pairs := make([]dataset.Pair, 10)
	train, val := dataset.Split(pairs, 0.2)
	require.Len(t, train, 8)
	require.Len(t, val, 2)

	train, val = dataset.Split(pairs, 0)
	require.Len(t, train, 10)
	require.Empty(t, val)

	train, val = dataset.Split(pairs[:1], 0.9)
	require.Len(t, train, 1)
	require.Empty(t, val)
}
