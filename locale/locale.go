// Package locale holds the two output languages analysis can be produced in.
package locale

import (
	"fmt"
	"strings"
	"time"
)

// Locale is an output language for analysis results.
type Locale string

const (
	Chinese Locale = "zh"
	English Locale = "en"
)

// Default is used when no locale is configured.
const Default = Chinese

// Parse validates s. Matching is case-insensitive and accepts region
// suffixes such as "zh-CN" or "en_US".
func Parse(s string) (Locale, error) {
	base := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(base, "-_"); i >= 0 {
		base = base[:i]
	}
	switch Locale(base) {
	case Chinese:
		return Chinese, nil
	case English:
		return English, nil
	default:
		return "", fmt.Errorf("unsupported locale %q: must be zh or en", s)
	}
}

// String implements fmt.Stringer.
func (l Locale) String() string {
	return string(l)
}

// Instruction is the language directive appended to analysis prompts.
func (l Locale) Instruction() string {
	if l == English {
		return "Use English."
	}
	return "Use Chinese (Simplified)."
}

// FallbackSummary is used when a provider's analysis cannot be parsed.
func (l Locale) FallbackSummary() string {
	if l == English {
		return "Recording this moment."
	}
	return "记录下这一刻。"
}

// FormatDate renders t for CLI listings.
func (l Locale) FormatDate(t time.Time) string {
	if l == English {
		return t.Format("Jan 2, 2006")
	}
	return t.Format("2006/1/2")
}
