package memory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MediaType describes the primary payload of a memory.
type MediaType string

const (
	MediaTypeText  MediaType = "TEXT"
	MediaTypeImage MediaType = "IMAGE"
	MediaTypeAudio MediaType = "AUDIO"
	MediaTypeVideo MediaType = "VIDEO"
)

// ParseMediaType validates s (case-insensitive).
func ParseMediaType(s string) (MediaType, error) {
	switch t := MediaType(strings.ToUpper(strings.TrimSpace(s))); t {
	case MediaTypeText, MediaTypeImage, MediaTypeAudio, MediaTypeVideo:
		return t, nil
	case "":
		return MediaTypeText, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// Kind returns the lower-case MIME family ("image", "audio", "video"), or
// "text" for text memories.
func (t MediaType) Kind() string {
	return strings.ToLower(string(t))
}

var (
	// ErrNotFound is returned when a memory id does not exist.
	ErrNotFound = errors.New("memory not found")
	// ErrNoAnalysis is returned when editing a summary that was never generated.
	ErrNoAnalysis = errors.New("memory has no analysis")
	// ErrInvalid wraps validation failures from Save.
	ErrInvalid = errors.New("invalid memory")
)

// AIAnalysis is the provider-derived interpretation of a memory.
type AIAnalysis struct {
	Mood    string   `json:"mood"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Color   string   `json:"color"`
	// AnalyzedByModel is empty for simulated or pre-existing results.
	AnalyzedByModel string `json:"analyzed_by_model,omitempty"`
}

// Media is a memory's binary payload.
type Media struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"` // nil when only metadata was loaded
}

// Memory is a single dated user note.
type Memory struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Content   string      `json:"content,omitempty"`
	MediaType MediaType   `json:"media_type"`
	Media     *Media      `json:"media,omitempty"`
	Location  string      `json:"location,omitempty"`
	Analysis  *AIAnalysis `json:"analysis,omitempty"`
}

// HasText reports whether the memory has non-blank text content.
func (m Memory) HasText() bool {
	return strings.TrimSpace(m.Content) != ""
}

// HasMediaData reports whether media bytes are loaded.
func (m Memory) HasMediaData() bool {
	return m.Media != nil && len(m.Media.Data) > 0
}

// Validate enforces that media is present iff MediaType is not TEXT.
func (m Memory) Validate() error {
	switch m.MediaType {
	case MediaTypeText:
		if m.Media != nil {
			return fmt.Errorf("text memory must not carry media")
		}
		if !m.HasText() {
			return fmt.Errorf("text memory requires content")
		}
	case MediaTypeImage, MediaTypeAudio, MediaTypeVideo:
		if !m.HasMediaData() {
			return fmt.Errorf("%s memory requires media data", m.MediaType.Kind())
		}
		if m.Media.MIMEType == "" {
			return fmt.Errorf("media MIME type is required")
		}
		if kind, _, _ := strings.Cut(m.Media.MIMEType, "/"); kind != m.MediaType.Kind() {
			return fmt.Errorf("MIME type %q does not match media type %s", m.Media.MIMEType, m.MediaType)
		}
	default:
		return fmt.Errorf("unknown media type %q", m.MediaType)
	}
	return nil
}
