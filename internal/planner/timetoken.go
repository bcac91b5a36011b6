package planner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// timeRe recognizes a line that declares its own time. It is deliberately
	// looser than the full grammar so that malformed tokens surface as parse
	// errors instead of silently becoming untimed text.
	timeRe = regexp.MustCompile(`^\s*\d{1,2}[:.]\d{2}`)

	rangeRe = regexp.MustCompile(`(?i)^\s*(\d{1,2})[:.](\d{2})(?:\s*(am|pm)\b)?(?:\s*-\s*(\d{1,2})[:.](\d{2})(?:\s*(am|pm)\b)?)?`)

	listTokensRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(?:\[.\]\s+)?`)
)

// HasTimeToken reports whether text starts with something shaped like a
// clock time.
func HasTimeToken(text string) bool {
	return timeRe.MatchString(text)
}

// TimeToken is a parsed leading time range.
type TimeToken struct {
	Start    int    // minutes since midnight
	End      int    // minutes since midnight, valid when HasEnd
	HasEnd   bool
	RawStart string
	RawEnd   string
	Len      int // byte length of the token in the source text
}

// ParseTimeToken parses the leading time range of text.
func ParseTimeToken(text string) (TimeToken, error) {
	m := rangeRe.FindStringSubmatchIndex(text)
	if m == nil {
		if HasTimeToken(text) {
			return TimeToken{}, fmt.Errorf("%w: %q", ErrInvalidTime, strings.TrimSpace(text))
		}
		return TimeToken{}, ErrNoTimeToken
	}
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}

	start, err := clockMinutes(group(1), group(2), group(3))
	if err != nil {
		return TimeToken{}, err
	}
	tok := TimeToken{
		Start:    start,
		RawStart: strings.TrimSpace(text[m[2]:rawEnd(m, 3, 2)]),
		Len:      m[1],
	}
	if group(4) != "" {
		end, err := clockMinutes(group(4), group(5), group(6))
		if err != nil {
			return TimeToken{}, err
		}
		tok.End = end
		tok.HasEnd = true
		tok.RawEnd = strings.TrimSpace(text[m[8]:rawEnd(m, 6, 5)])
	}
	return tok, nil
}

// rawEnd returns the end offset of a clock: the am/pm group when present,
// otherwise the minutes group.
func rawEnd(m []int, suffixGroup, minuteGroup int) int {
	if m[2*suffixGroup] >= 0 {
		return m[2*suffixGroup+1]
	}
	return m[2*minuteGroup+1]
}

func clockMinutes(hh, mm, suffix string) (int, error) {
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: hour %q", ErrInvalidTime, hh)
	}
	mins, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("%w: minute %q", ErrInvalidTime, mm)
	}
	if mins > 59 {
		return 0, fmt.Errorf("%w: minute %d out of range", ErrInvalidTime, mins)
	}
	switch strings.ToLower(suffix) {
	case "":
		if h > 23 {
			return 0, fmt.Errorf("%w: hour %d out of range", ErrInvalidTime, h)
		}
	case "am", "pm":
		if h < 1 || h > 12 {
			return 0, fmt.Errorf("%w: hour %d out of range for %s", ErrInvalidTime, h, suffix)
		}
		h %= 12
		if strings.EqualFold(suffix, "pm") {
			h += 12
		}
	}
	return h*60 + mins, nil
}

// SplitListTokens separates the list marker and checkbox prefix from a line.
func SplitListTokens(line string) (tokens, rest string) {
	loc := listTokensRe.FindStringIndex(line)
	if loc == nil {
		return "", line
	}
	return line[:loc[1]], line[loc[1]:]
}
