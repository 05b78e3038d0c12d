package common

import (
	uuid "github.com/nu7hatch/gouuid"
)

// GenUUID returns a random uuid string for tagging a batch run in logs.
// uuid.NewV4 reads from crypto/rand, which can in principle fail; retrying is
// fine because we only ever call this once per process.
func GenUUID() string {
	for {
		if id, err := uuid.NewV4(); err == nil {
			return id.String()
		}
	}
}
