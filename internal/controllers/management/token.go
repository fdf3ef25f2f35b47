package management

import (
	"crypto/subtle"

	"github.com/google/uuid"
)

// generateAuthToken returns a standard UUID string with hyphens.
func generateAuthToken() string {
	return uuid.New().String()
}

func tokenMatches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
