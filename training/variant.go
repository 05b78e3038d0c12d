package training

// Variant supplies the trainer-flavor-specific pieces of a command vector.
// The orchestrator itself is dataset-agnostic; a variant decides the data
// parser and contributes extra arguments at fixed points of the vector.
//
// Argument placement is a contract with the trainer's last-wins flag
// parsing: OverridablePartitionArgs are appended early so later groups can
// override them, FinalPartitionArgs are appended last so nothing can.
type Variant interface {
	// DataParserName selects --data.parser. ok=false omits the flag
	// entirely, for variants (e.g. finetuning) where the parser comes from
	// the config file.
	DataParserName() (name string, ok bool)

	OverridablePartitionArgs(partitionIdx int) []string
	DatasetArgs(partitionIdx int) []string
	FinalPartitionArgs(partitionIdx int) []string
}

// ColmapVariant trains partitions of a COLMAP-parsed scene and has no
// per-partition extras.
type ColmapVariant struct{}

func (ColmapVariant) DataParserName() (string, bool) { return "Colmap", true }

func (ColmapVariant) OverridablePartitionArgs(int) []string { return nil }

func (ColmapVariant) DatasetArgs(int) []string { return nil }

func (ColmapVariant) FinalPartitionArgs(int) []string { return nil }
