package training

import (
	"fmt"
)

// Summary counts how the batch's partitions ended up.
type Summary struct {
	Total        int
	Succeeded    int
	Failed       int
	NotAttempted int
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.ExitCode.Success():
			s.Succeeded++
		case o.ExitCode.Attempted():
			s.Failed++
		default:
			s.NotAttempted++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d partitions: %d succeeded, %d failed, %d not attempted",
		s.Total, s.Succeeded, s.Failed, s.NotAttempted)
}
