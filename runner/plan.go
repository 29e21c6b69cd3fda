package runner

import (
	"strconv"
	"strings"
	"time"
)

// A Plan is the ordered list of steps submitted by the caller for one
// execution. It is immutable for the duration of the run and owned by
// exactly one Execute invocation.
type Plan []Step

// A Step is one typed instruction within a plan. Action discriminates which
// of the remaining fields apply.
type Step struct {
	Action   string `json:"action"`
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Target   string `json:"target,omitempty"`

	// wait timing, resolved via waitMillis in order of precedence
	Milliseconds *float64 `json:"milliseconds,omitempty"`
	Duration     any      `json:"duration,omitempty"`
	Seconds      *float64 `json:"seconds,omitempty"`

	Limit int `json:"limit,omitempty"`
	Count int `json:"count,omitempty"`
}

const (
	ActionOpenPage    = "open_page"
	ActionWait        = "wait"
	ActionClick       = "click"
	ActionType        = "type"
	ActionExtractList = "extract_list"
)

const defaultWaitMS = 2000

// waitMillis resolves the delay of a wait step. Precedence: milliseconds,
// then duration (string with units, or a plain number taken as
// milliseconds), then seconds. Negative or non-numeric values coerce to
// the default of 2000ms.
func (s Step) waitMillis() int {
	if s.Milliseconds != nil {
		if *s.Milliseconds >= 0 {
			return int(*s.Milliseconds)
		}
		return defaultWaitMS
	}
	switch d := s.Duration.(type) {
	case string:
		if ms, ok := parseWaitString(d); ok {
			return ms
		}
		return defaultWaitMS
	case float64:
		if d >= 0 {
			return int(d)
		}
		return defaultWaitMS
	case int:
		if d >= 0 {
			return d
		}
		return defaultWaitMS
	}
	if s.Seconds != nil {
		if *s.Seconds >= 0 {
			return int(*s.Seconds * 1000)
		}
		return defaultWaitMS
	}
	return defaultWaitMS
}

// parseWaitString understands "3000ms", "3s", "1.5s", "3sec", "3 seconds"
// and bare numbers like "3", which count as seconds.
func parseWaitString(raw string) (int, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(cleaned); err == nil {
		if d < 0 {
			return 0, false
		}
		return int(d.Milliseconds()), true
	}
	numEnd := 0
	for numEnd < len(cleaned) && (cleaned[numEnd] == '.' || cleaned[numEnd] == '-' || (cleaned[numEnd] >= '0' && cleaned[numEnd] <= '9')) {
		numEnd++
	}
	num, err := strconv.ParseFloat(cleaned[:numEnd], 64)
	if err != nil || num < 0 {
		return 0, false
	}
	unit := strings.TrimSpace(cleaned[numEnd:])
	switch {
	case strings.HasPrefix(unit, "milli"):
		return int(num), true
	case unit == "" || strings.HasPrefix(unit, "s"):
		return int(num * 1000), true
	}
	return 0, false
}

// resolveLimit picks the extraction truncation limit, accepting both the
// limit and count spellings.
func (s Step) resolveLimit(fallback int) int {
	if s.Limit > 0 {
		return s.Limit
	}
	if s.Count > 0 {
		return s.Count
	}
	return fallback
}
