package drive_test

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/image/tiff"

	"github.com/vesselseg-ml/vesselseg/internal/backend/cpu"
	"github.com/vesselseg-ml/vesselseg/internal/drive"
	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// writeDataset builds a minimal DRIVE-style tree with two 8x8 subjects.
func writeDataset(t *testing.T, root, split string) {
	t.Helper()
	for _, dir := range []string{"images", "1st_manual", "mask"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, split, dir), 0o755))
	}

	for _, id := range []string{"21", "22"} {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 100, B: 50, A: 255})
			}
		}
		f, err := os.Create(filepath.Join(root, split, "images", id+"_"+split+".tif"))
		require.NoError(t, err)
		require.NoError(t, tiff.Encode(f, img, nil))
		require.NoError(t, f.Close())

		pal := color.Palette{color.Gray{Y: 0}, color.Gray{Y: 255}}
		label := image.NewPaletted(image.Rect(0, 0, 8, 8), pal)
		label.SetColorIndex(3, 3, 1)
		label.SetColorIndex(4, 4, 1)
		writeGIF(t, filepath.Join(root, split, "1st_manual", id+"_manual1.gif"), label)

		fov := image.NewPaletted(image.Rect(0, 0, 8, 8), pal)
		for y := 1; y < 7; y++ {
			for x := 1; x < 7; x++ {
				fov.SetColorIndex(x, y, 1)
			}
		}
		writeGIF(t, filepath.Join(root, split, "mask", id+"_"+split+"_mask.gif"), fov)
	}
}

func writeGIF(t *testing.T, path string, img *image.Paletted) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gif.Encode(f, img, nil))
}

func TestLoadSplit(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, drive.TrainingSplit)

	samples, err := drive.LoadSplit(root, drive.TrainingSplit)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	// Subjects load in sorted name order.
	assert.Equal(t, "21", samples[0].Name)
	assert.Equal(t, "22", samples[1].Name)

	s := samples[0]
	assert.Equal(t, 8, s.Height)
	assert.Equal(t, 8, s.Width)
	assert.Len(t, s.Image, 3*8*8)
	assert.Len(t, s.Label, 8*8)
	assert.Len(t, s.FOV, 8*8)

	// Annotated vessel pixels survive binarization.
	assert.Equal(t, float32(1), s.Label[3*8+3])
	assert.Equal(t, float32(0), s.Label[0])
	// FOV excludes the border ring.
	assert.Equal(t, float32(0), s.FOV[0])
	assert.Equal(t, float32(1), s.FOV[3*8+3])
}

func TestLoadSplitMissingAnnotation(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, drive.TestSplit)
	require.NoError(t, os.Remove(filepath.Join(root, drive.TestSplit, "1st_manual", "21_manual1.gif")))

	_, err := drive.LoadSplit(root, drive.TestSplit)
	assert.Error(t, err)
}

func TestLoadSplitMissingRoot(t *testing.T) {
	_, err := drive.LoadSplit(filepath.Join(t.TempDir(), "nope"), drive.TrainingSplit)
	assert.Error(t, err)
}

func TestBatchStacksSamples(t *testing.T) {
	root := t.TempDir()
	writeDataset(t, root, drive.TrainingSplit)
	samples, err := drive.LoadSplit(root, drive.TrainingSplit)
	require.NoError(t, err)

	backend := cpu.New()
	images, labels, err := drive.Batch(samples, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 8, 8}, images.Shape())
	assert.Equal(t, tensor.Shape{2, 1, 8, 8}, labels.Shape())
	// First pixel of subject 21's red plane: x=0 -> 0.
	assert.InDelta(t, 0.0, images.At(0, 0, 0, 0), 1e-6)
}

func TestBatchRejectsMixedSizes(t *testing.T) {
	a := &drive.Sample{Name: "a", Height: 4, Width: 4,
		Image: make([]float32, 3*16), Label: make([]float32, 16), FOV: make([]float32, 16)}
	b := &drive.Sample{Name: "b", Height: 8, Width: 8,
		Image: make([]float32, 3*64), Label: make([]float32, 64), FOV: make([]float32, 64)}

	_, _, err := drive.Batch([]*drive.Sample{a, b}, cpu.New())
	assert.Error(t, err)
}
