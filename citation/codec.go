// Package citation encodes and decodes the inline memory references a
// language model emits in chat answers.
//
// A reference is written [[ID:<memory-id>]]. Decode splits text into plain
// and citation segments such that joining every segment's Raw text always
// reproduces the input exactly. Ids that do not resolve to a memory are not
// an error; renderers show them as inert text.
package citation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	prefix = "[[ID:"
	suffix = "]]"
)

var tokenPattern = regexp.MustCompile(`\[\[ID:.*?\]\]`)

// Segment is one piece of decoded text.
type Segment struct {
	// Raw is the exact source text of the segment.
	Raw string `json:"raw"`
	// Citation is true when Raw is a reference token.
	Citation bool `json:"citation,omitempty"`
	// ID is the referenced memory id; empty for plain segments.
	ID string `json:"id,omitempty"`
}

// Encode returns the reference token for id.
func Encode(id string) string {
	return prefix + id + suffix
}

// Decode splits s into alternating plain and citation segments. The result
// always starts and ends with a plain segment, which may be empty, so a
// string with n references yields 2n+1 segments.
func Decode(s string) []Segment {
	matches := tokenPattern.FindAllStringIndex(s, -1)
	segments := make([]Segment, 0, 2*len(matches)+1)

	last := 0
	for _, m := range matches {
		segments = append(segments, Segment{Raw: s[last:m[0]]})
		token := s[m[0]:m[1]]
		segments = append(segments, Segment{
			Raw:      token,
			Citation: true,
			ID:       token[len(prefix) : len(token)-len(suffix)],
		})
		last = m[1]
	}
	segments = append(segments, Segment{Raw: s[last:]})
	return segments
}

// Join concatenates the raw text of segments. Join(Decode(s)) == s.
func Join(segments []Segment) string {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(seg.Raw)
	}
	return sb.String()
}

// IDs returns the referenced ids of s in order of appearance, duplicates
// included.
func IDs(s string) []string {
	var ids []string
	for _, seg := range Decode(s) {
		if seg.Citation {
			ids = append(ids, seg.ID)
		}
	}
	return ids
}

// Unresolved returns the distinct citation ids for which known reports
// false, in order of first appearance.
func Unresolved(segments []Segment, known func(id string) bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, seg := range segments {
		if !seg.Citation || seen[seg.ID] {
			continue
		}
		seen[seg.ID] = true
		if !known(seg.ID) {
			out = append(out, seg.ID)
		}
	}
	return out
}

// Footnotes renders segments as plain text with numbered markers. Each
// distinct known id gets a number in order of first appearance and is
// returned in ids; unknown ids render as "[?]".
func Footnotes(segments []Segment, known func(id string) bool) (text string, ids []string) {
	numbers := make(map[string]int)
	var sb strings.Builder
	for _, seg := range segments {
		if !seg.Citation {
			sb.WriteString(seg.Raw)
			continue
		}
		if !known(seg.ID) {
			sb.WriteString("[?]")
			continue
		}
		n, ok := numbers[seg.ID]
		if !ok {
			ids = append(ids, seg.ID)
			n = len(ids)
			numbers[seg.ID] = n
		}
		fmt.Fprintf(&sb, "[%d]", n)
	}
	return sb.String(), ids
}
