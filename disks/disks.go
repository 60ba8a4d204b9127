// Package disks holds the predefined controller geometries.
package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/fs3io/fs3/common"
	"github.com/fs3io/fs3/errors"
	"github.com/gocarina/gocsv"
)

// Preset is a named disk geometry.
type Preset struct {
	Slug            string `csv:"slug"`
	Name            string `csv:"name"`
	Tracks          uint   `csv:"tracks"`
	SectorsPerTrack uint   `csv:"sectors_per_track"`
	BytesPerSector  uint   `csv:"bytes_per_sector"`
	Notes           string `csv:"notes"`
}

// Geometry gives the layout of the preset's disk.
func (p Preset) Geometry() common.Geometry {
	return common.Geometry{
		Tracks:          p.Tracks,
		SectorsPerTrack: p.SectorsPerTrack,
		BytesPerSector:  p.BytesPerSector,
	}
}

// TotalSizeBytes gives the size of the disk. This is the minimum size of an
// image file for it.
func (p Preset) TotalSizeBytes() int64 {
	return p.Geometry().TotalSizeBytes()
}

////////////////////////////////////////////////////////////////////////////////

//go:embed geometries.csv
var geometriesRawCSV string
var presets []Preset
var presetsBySlug map[string]Preset

// Lookup returns the preset with the given slug.
func Lookup(slug string) (Preset, error) {
	preset, ok := presetsBySlug[slug]
	if ok {
		return preset, nil
	}
	return Preset{}, errors.NewWithMessage(
		errors.ENOENT, fmt.Sprintf("no predefined disk geometry exists with slug %q", slug))
}

// All returns every preset in the order they're defined.
func All() []Preset {
	result := make([]Preset, len(presets))
	copy(result, presets)
	return result
}

// WriteCSV writes every preset to `w` as comma-separated values with a header.
func WriteCSV(w io.Writer) error {
	return gocsv.Marshal(presets, w)
}

func init() {
	csvReader := csv.NewReader(strings.NewReader(geometriesRawCSV))
	csvReader.Comma = '|'

	if err := gocsv.UnmarshalCSV(csvReader, &presets); err != nil {
		panic(fmt.Errorf("failed to decode disk geometries: %w", err))
	}

	presetsBySlug = make(map[string]Preset, len(presets))
	for i, row := range presets {
		if _, exists := presetsBySlug[row.Slug]; exists {
			panic(
				fmt.Errorf("duplicate definition for disk %q found on row %d", row.Slug, i+1))
		}
		if err := row.Geometry().Validate(); err != nil {
			panic(fmt.Errorf("disk %q on row %d: %w", row.Slug, i+1, err))
		}
		presetsBySlug[row.Slug] = row
	}
}
