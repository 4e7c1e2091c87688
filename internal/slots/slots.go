package slots

import (
	"strconv"
	"strings"
	"time"
)

const clockLayout = "15:04"

// allowedLocations are the NYC-area tokens a location value must contain.
var allowedLocations = []string{
	"manhattan", "brooklyn", "queens", "bronx", "staten island",
	"new york", "nyc", "midtown", "soho", "chelsea",
}

var allowedCuisines = []string{"american", "chinese", "italian", "japanese", "indian"}

// ValidLocation reports whether v names a supported area. Matching is a
// case-insensitive substring check, so "Downtown Manhattan" passes.
func ValidLocation(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if len(s) < 2 {
		return false
	}
	for _, tok := range allowedLocations {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// ValidCuisine reports whether v is one of the supported cuisines,
// case-insensitively.
func ValidCuisine(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	for _, c := range allowedCuisines {
		if s == c {
			return true
		}
	}
	return false
}

// Cuisines returns the supported cuisine names, for prompts.
func Cuisines() []string {
	out := make([]string, len(allowedCuisines))
	copy(out, allowedCuisines)
	return out
}

// NormalizeDiningTime reduces a time value to HH:MM: a leading ISO "T"
// designator is dropped, trailing seconds are stripped when the remainder is
// still a clock time, and the hour is zero-padded. Values that do not
// normalize to a valid clock time are returned with only the obvious
// trimming applied. Normalizing an already-normal value is a no-op.
func NormalizeDiningTime(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return s
	}
	if s[0] == 'T' || s[0] == 't' {
		s = s[1:]
	}
	if first, last := strings.Index(s, ":"), strings.LastIndex(s, ":"); first != last {
		if _, err := time.Parse(clockLayout, s[:last]); err == nil {
			s = s[:last]
		}
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return s
	}
	return t.Format(clockLayout)
}

// ValidDiningTime reports whether v normalizes to an H:MM or HH:MM clock
// time with hour 0-23 and minute 0-59.
func ValidDiningTime(v string) bool {
	_, err := time.Parse(clockLayout, NormalizeDiningTime(v))
	return err == nil
}

// ParsePartySize parses v as a party size between 1 and 20 inclusive.
func ParsePartySize(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 || n > 20 {
		return 0, false
	}
	return n, true
}

// ValidPartySize reports whether v parses as an in-range party size.
func ValidPartySize(v string) bool {
	_, ok := ParsePartySize(v)
	return ok
}

// ValidEmail reports whether v looks like local@domain.tld: no whitespace,
// exactly one "@" with a non-empty local part, and at least one "." after
// the "@" with characters on both sides.
func ValidEmail(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	at := strings.Index(s, "@")
	if at <= 0 || at != strings.LastIndex(s, "@") {
		return false
	}
	dom := s[at+1:]
	dot := strings.LastIndex(dom, ".")
	return dot > 0 && dot < len(dom)-1
}
