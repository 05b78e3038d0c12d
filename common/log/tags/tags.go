package tags

import (
	log "github.com/sirupsen/logrus"
)

// LogTags identify which batch run and which partition a log line belongs
// to. They are meant to be embedded in any struct whose methods log on
// behalf of a single partition attempt.
type LogTags struct {
	// RunID is one uuid per orchestrator invocation, shared by every
	// partition of the batch.
	RunID string

	// PartitionIdx is the partition's index in the loaded partition index.
	PartitionIdx int

	// PartitionID is the partition's stable string id, e.g. "-1_2".
	PartitionID string
}

// Fields renders the tags for log.WithFields.
func (t LogTags) Fields() log.Fields {
	return log.Fields{
		"runID":        t.RunID,
		"partitionIdx": t.PartitionIdx,
		"partitionID":  t.PartitionID,
	}
}
