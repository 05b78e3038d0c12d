// Package partition loads and queries the persisted partition index: the
// ordered partition coordinates produced by the spatial partitioner, plus
// the per-partition image assignment matrices.
package partition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DefaultFileName is the index document's name inside a partition dir.
const DefaultFileName = "partitions.json"

// Coordinate identifies one partition by its integer grid cell and the
// cell's origin in scene space.
type Coordinate struct {
	X       int     `json:"x"`
	Y       int     `json:"y"`
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
}

// ID is the partition's stable string form, used in experiment names,
// marker file names, and the --parts allowlist.
func (c Coordinate) ID() string {
	return fmt.Sprintf("%d_%d", c.X, c.Y)
}

// Index is read-only after Load. Indices are stable for its lifetime:
// partition i's coordinate, location row, and visibility row line up.
type Index struct {
	Coordinates           []Coordinate
	LocationAssignments   [][]bool
	VisibilityAssignments [][]bool
}

// indexDoc is the wire shape of the persisted index.
type indexDoc struct {
	PartitionCoordinates struct {
		ID [][2]int     `json:"id"`
		XY [][2]float64 `json:"xy"`
	} `json:"partition_coordinates"`
	LocationBasedAssignments   [][]bool `json:"location_based_assignments"`
	VisibilityBasedAssignments [][]bool `json:"visibility_based_assignments"`
}

// Load reads the index document from dir and validates its invariants.
func Load(dir string) (*Index, error) {
	return LoadFile(filepath.Join(dir, DefaultFileName))
}

func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading partition index %q", path)
	}
	var doc indexDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing partition index %q", path)
	}

	idx := &Index{
		LocationAssignments:   doc.LocationBasedAssignments,
		VisibilityAssignments: doc.VisibilityBasedAssignments,
	}
	for i, id := range doc.PartitionCoordinates.ID {
		c := Coordinate{X: id[0], Y: id[1]}
		if i < len(doc.PartitionCoordinates.XY) {
			c.OriginX = doc.PartitionCoordinates.XY[i][0]
			c.OriginY = doc.PartitionCoordinates.XY[i][1]
		}
		idx.Coordinates = append(idx.Coordinates, c)
	}

	if err := idx.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid partition index %q", path)
	}
	return idx, nil
}

func (idx *Index) validate() error {
	n := len(idx.Coordinates)
	if len(idx.LocationAssignments) != n || len(idx.VisibilityAssignments) != n {
		return errors.Errorf(
			"length mismatch: %d coordinates, %d location rows, %d visibility rows",
			n, len(idx.LocationAssignments), len(idx.VisibilityAssignments))
	}
	for i := 0; i < n; i++ {
		if len(idx.LocationAssignments[i]) != len(idx.VisibilityAssignments[i]) {
			return errors.Errorf(
				"partition %d: location row has %d images, visibility row has %d",
				i, len(idx.LocationAssignments[i]), len(idx.VisibilityAssignments[i]))
		}
	}
	return nil
}

func (idx *Index) Len() int {
	return len(idx.Coordinates)
}

// LocationCounts returns, per partition, how many images its location row
// assigns. This is the eligibility measure.
func (idx *Index) LocationCounts() []int {
	counts := make([]int, len(idx.LocationAssignments))
	for i, row := range idx.LocationAssignments {
		for _, assigned := range row {
			if assigned {
				counts[i]++
			}
		}
	}
	return counts
}

// ImageCount returns how many images partition i trains on: the union of
// its location and visibility rows. An image assigned by both counts once.
func (idx *Index) ImageCount(i int) int {
	count := 0
	for j := range idx.LocationAssignments[i] {
		if idx.LocationAssignments[i][j] || idx.VisibilityAssignments[i][j] {
			count++
		}
	}
	return count
}

// IDStrings returns every partition's stable id, in index order.
func (idx *Index) IDStrings() []string {
	ids := make([]string, len(idx.Coordinates))
	for i, c := range idx.Coordinates {
		ids[i] = c.ID()
	}
	return ids
}
