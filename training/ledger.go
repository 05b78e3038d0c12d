package training

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	log "github.com/sirupsen/logrus"
)

// Ledger records, per experiment, the step budget a partition has already
// completed. Markers are the only durable state this core owns: one plain
// text file per partition per project, created only after a successful run.
// Partitions never share a marker file, so no locking is needed.
type Ledger struct {
	// Dir is the project output directory holding the markers.
	Dir string
}

const trainedMarkerSuffix = "-trained"

// Path returns the marker file for an experiment name.
func (l Ledger) Path(experimentName string) string {
	return filepath.Join(l.Dir, experimentName+trainedMarkerSuffix)
}

// TrainedSteps reads the recorded budget. A missing, unreadable, or
// non-numeric marker is not an error from the caller's perspective: it means
// no confirmed prior progress.
func (l Ledger) TrainedSteps(experimentName string) (steps int, ok bool) {
	path := l.Path(experimentName)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	steps, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		log.Debugf("Ignoring unparseable trained marker %q: %v", path, err)
		return 0, false
	}
	return steps, true
}

// RecordTrained writes the completed budget, creating parent directories as
// needed. Callers only invoke this after a zero exit code; a failed run must
// leave the marker untouched so the next run re-attempts from scratch.
func (l Ledger) RecordTrained(experimentName string, maxSteps int) error {
	path := l.Path(experimentName)
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errors.Wrapf(err, "creating marker dir for %q", path)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(maxSteps)), 0666); err != nil {
		return errors.Wrapf(err, "writing trained marker %q", path)
	}
	return nil
}
