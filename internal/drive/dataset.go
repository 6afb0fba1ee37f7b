// Package drive loads the DRIVE retinal vessel dataset: fundus photographs
// with manual vessel annotations and field-of-view masks, organized as
//
//	<root>/<split>/images/      fundus photographs (TIFF)
//	<root>/<split>/1st_manual/  vessel annotations (GIF)
//	<root>/<split>/mask/        field-of-view masks (GIF)
//
// Files belonging to the same subject share a numeric prefix, e.g.
// 21_training.tif, 21_manual1.gif and 21_training_mask.gif.
package drive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vesselseg-ml/vesselseg/internal/imageio"
)

// Channels is the number of image planes per sample.
const Channels = 3

// Splits recognized under the dataset root.
const (
	TrainingSplit = "training"
	TestSplit     = "test"
)

// Sample is one subject: the photograph in CHW planes, the vessel
// annotation and the field-of-view mask as 0/1 HW planes.
type Sample struct {
	Name   string
	Image  []float32
	Label  []float32
	FOV    []float32
	Height int
	Width  int
}

// Clone returns a deep copy, so transforms never mutate the dataset.
func (s *Sample) Clone() *Sample {
	c := &Sample{Name: s.Name, Height: s.Height, Width: s.Width}
	c.Image = append([]float32(nil), s.Image...)
	c.Label = append([]float32(nil), s.Label...)
	c.FOV = append([]float32(nil), s.FOV...)
	return c
}

// LoadSplit reads every subject of a split, sorted by name.
func LoadSplit(root, split string) ([]*Sample, error) {
	imagesDir := filepath.Join(root, split, "images")
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return nil, fmt.Errorf("read images dir: %w", err)
	}

	labelIndex, err := indexByPrefix(filepath.Join(root, split, "1st_manual"))
	if err != nil {
		return nil, err
	}
	fovIndex, err := indexByPrefix(filepath.Join(root, split, "mask"))
	if err != nil {
		return nil, err
	}

	var samples []*Sample
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		prefix := numericPrefix(e.Name())
		if prefix == "" {
			continue
		}

		labelPath, ok := labelIndex[prefix]
		if !ok {
			return nil, fmt.Errorf("subject %s: no annotation in 1st_manual", prefix)
		}
		fovPath, ok := fovIndex[prefix]
		if !ok {
			return nil, fmt.Errorf("subject %s: no field-of-view mask", prefix)
		}

		s, err := loadSample(prefix, filepath.Join(imagesDir, e.Name()), labelPath, fovPath)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples found under %s", imagesDir)
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return samples, nil
}

func loadSample(name, imagePath, labelPath, fovPath string) (*Sample, error) {
	img, h, w, err := imageio.DecodeRGB(imagePath)
	if err != nil {
		return nil, fmt.Errorf("subject %s: %w", name, err)
	}
	label, lh, lw, err := imageio.DecodeBinary(labelPath)
	if err != nil {
		return nil, fmt.Errorf("subject %s: %w", name, err)
	}
	fov, fh, fw, err := imageio.DecodeBinary(fovPath)
	if err != nil {
		return nil, fmt.Errorf("subject %s: %w", name, err)
	}
	if lh != h || lw != w || fh != h || fw != w {
		return nil, fmt.Errorf("subject %s: image is %dx%d but annotation is %dx%d and mask %dx%d",
			name, h, w, lh, lw, fh, fw)
	}
	return &Sample{Name: name, Image: img, Label: label, FOV: fov, Height: h, Width: w}, nil
}

// indexByPrefix maps each file's numeric prefix to its full path.
func indexByPrefix(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	index := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if prefix := numericPrefix(e.Name()); prefix != "" {
			index[prefix] = filepath.Join(dir, e.Name())
		}
	}
	return index, nil
}

// numericPrefix returns the leading digits of a file name, or "".
func numericPrefix(name string) string {
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		i++
	}
	if i == 0 {
		return ""
	}
	// Require a separator after the digits so "123.tif" also works.
	rest := name[i:]
	if rest != "" && !strings.HasPrefix(rest, "_") && !strings.HasPrefix(rest, ".") {
		return ""
	}
	return name[:i]
}
