package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmh1027/gaussian-splatting-lightning/partition"
	"github.com/cmh1027/gaussian-splatting-lightning/scaling"
)

// writePartitionIndex persists a 3-partition index over 30 images with
// location-based counts 5, 20 and 30, visibility equal to location. Ids are
// "0_0", "1_0", "2_0". Returns the partition dir.
func writePartitionIndex(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "partitions")
	if err := os.MkdirAll(dir, 0777); err != nil {
		t.Fatal(err)
	}

	row := func(n int) []bool {
		r := make([]bool, 30)
		for i := 0; i < n; i++ {
			r[i] = true
		}
		return r
	}
	doc := map[string]interface{}{
		"partition_coordinates": map[string]interface{}{
			"id": [][2]int{{0, 0}, {1, 0}, {2, 0}},
			"xy": [][2]float64{{0, 0}, {51.2, 0}, {102.4, 0}},
		},
		"location_based_assignments":   [][]bool{row(5), row(20), row(30)},
		"visibility_based_assignments": [][]bool{row(5), row(20), row(30)},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, partition.DefaultFileName), data, 0666); err != nil {
		t.Fatal(err)
	}
	return dir
}

func testConfig(t *testing.T, partitionDir string) Config {
	t.Helper()
	return Config{
		PartitionDir:   partitionDir,
		ProjectName:    "test-project",
		MinImages:      10,
		NProcesses:     1,
		ProcessID:      0,
		ScaleMode:      scaling.ModeLinear,
		ScalableParams: map[string]int{"test.interval": 100},
		OutputBase:     t.TempDir(),
	}
}

// testVariant forces chosen partitions to exit with a given code when run
// under the sim execer, by appending a final "complete <code>" token.
type testVariant struct {
	exitCodes map[int]int
}

func (v testVariant) DataParserName() (string, bool) { return "Colmap", true }

func (v testVariant) OverridablePartitionArgs(int) []string { return nil }

func (v testVariant) DatasetArgs(int) []string { return nil }

func (v testVariant) FinalPartitionArgs(partitionIdx int) []string {
	if code, ok := v.exitCodes[partitionIdx]; ok {
		return []string{fmt.Sprintf("complete %d", code)}
	}
	return nil
}
