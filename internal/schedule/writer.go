package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/starford/dayplanner/internal/apperr"
	"github.com/starford/dayplanner/internal/planner"
	"github.com/starford/dayplanner/internal/timeutil"
)

// RewriteTimeRange replaces the leading time token of a list line with
// "HH:MM - HH:MM", or "HH:MM" when end is nil, keeping the list tokens and
// the rest of the line intact. end wraps around midnight, so an end before
// start writes a range that crosses into the next day. A line without a
// valid time token yields apperr.ErrStale.
func RewriteTimeRange(line string, start int, end *int) (string, error) {
	tokens, rest := planner.SplitListTokens(line)
	tok, err := planner.ParseTimeToken(rest)
	if errors.Is(err, planner.ErrNoTimeToken) || errors.Is(err, planner.ErrInvalidTime) {
		return "", fmt.Errorf("time token: %w", apperr.ErrStale)
	}
	if err != nil {
		return "", err
	}
	if start < 0 || start >= timeutil.MinutesPerDay {
		return "", fmt.Errorf("start %d: %w", start, apperr.ErrInvalidInput)
	}

	token := timeutil.FormatClock(start)
	if end != nil {
		token += " - " + timeutil.FormatClock(*end)
	}

	lead := rest[:len(rest)-len(strings.TrimLeft(rest, " \t"))]
	return tokens + lead + token + rest[tok.Len:], nil
}
