package agents

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d+`)

// maxLineLength caps a discussion line so one rambling completion cannot
// flood the transcript.
const maxLineLength = 280

// ParseTarget extracts a legal target id from raw oracle output. Allowed
// normalization is deliberately shallow: trim, case-fold, pick the first
// integer that names a legal target ("7", "Player 7", "I vote for 7."). An
// empty response or one naming no legal target is an oracle failure, not
// something to fuzzy-match around.
func ParseTarget(raw string, legal []int) (int, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty response", ErrOracle)
	}

	for _, match := range numberPattern.FindAllString(cleaned, -1) {
		id, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		for _, l := range legal {
			if id == l {
				return id, nil
			}
		}
	}

	return 0, fmt.Errorf("%w: no legal target in response %q", ErrOracle, truncate(raw, 80))
}

// ParseLine normalizes a discussion response: trim, strip wrapping quotes and
// code fences, collapse to a single line, cap the length. Empty results are
// oracle failures.
func ParseLine(raw string) (string, error) {
	line := strings.TrimSpace(raw)
	line = strings.TrimPrefix(line, "```")
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(line, "```")
	line = strings.Trim(strings.TrimSpace(line), `"`)
	if line == "" {
		return "", fmt.Errorf("%w: empty discussion line", ErrOracle)
	}
	return truncate(line, maxLineLength), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
