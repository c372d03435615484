package instance

import (
	"os"
	"strings"
)

// GetID returns the dyno or host identifier this process runs as.
func GetID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
