package locale

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Locale
		wantErr bool
	}{
		{"zh", Chinese, false},
		{"EN", English, false},
		{"zh-CN", Chinese, false},
		{"en_US", English, false},
		{" en ", English, false},
		{"fr", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLocaleStrings(t *testing.T) {
	if Chinese.Instruction() != "Use Chinese (Simplified)." {
		t.Errorf("Unexpected zh instruction %q", Chinese.Instruction())
	}
	if English.FallbackSummary() != "Recording this moment." {
		t.Errorf("Unexpected en fallback %q", English.FallbackSummary())
	}
	if Chinese.FallbackSummary() != "记录下这一刻。" {
		t.Errorf("Unexpected zh fallback %q", Chinese.FallbackSummary())
	}

	day := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	if got := English.FormatDate(day); got != "Mar 9, 2024" {
		t.Errorf("Unexpected en date %q", got)
	}
	if got := Chinese.FormatDate(day); got != "2024/3/9" {
		t.Errorf("Unexpected zh date %q", got)
	}
}
