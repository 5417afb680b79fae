package validation

import (
	"fmt"
	"regexp"
)

var gameIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateGameID rejects ids that are not short url-safe tokens. Game ids are
// server-generated UUIDs, so anything else in the path is noise.
func ValidateGameID(id string) error {
	if len(id) == 0 || len(id) > 64 {
		return fmt.Errorf("game ID must be 1-64 characters")
	}
	if !gameIDPattern.MatchString(id) {
		return fmt.Errorf("game ID can only contain alphanumeric characters, hyphens, and underscores")
	}
	return nil
}
