package format

import (
	"testing"
	"time"
)

func TestFileSize(t *testing.T) {
	testCases := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{name: "Zero", bytes: 0, expected: "0 Bytes"},
		{name: "Negative", bytes: -1, expected: "N/A"},
		{name: "Bytes", bytes: 512, expected: "512 Bytes"},
		{name: "Kilobytes", bytes: 1024, expected: "1 KB"},
		{name: "Fractional megabytes", bytes: 5*1024*1024 + 512*1024, expected: "5.5 MB"},
		{name: "Gigabytes", bytes: 3 * 1024 * 1024 * 1024, expected: "3 GB"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FileSize(tc.bytes)
			if got != tc.expected {
				t.Errorf("FileSize(%d) = %q, want %q", tc.bytes, got, tc.expected)
			}
		})
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(0.925, 1); got != "92.5%" {
		t.Errorf("Percentage(0.925, 1) = %q, want %q", got, "92.5%")
	}
	if got := Percentage(1, 0); got != "100%" {
		t.Errorf("Percentage(1, 0) = %q, want %q", got, "100%")
	}
}

func TestConfidenceLabels(t *testing.T) {
	testCases := []struct {
		value    float64
		expected string
	}{
		{0.95, "Very High"},
		{0.8, "Very High"},
		{0.7, "High"},
		{0.5, "Medium"},
		{0.3, "Low"},
		{0.1, "Very Low"},
	}

	for _, tc := range testCases {
		got := Confidence(tc.value)
		if got.Label != tc.expected {
			t.Errorf("Confidence(%v).Label = %q, want %q", tc.value, got.Label, tc.expected)
		}
	}
}

func TestSeverity(t *testing.T) {
	if got := Severity("high"); got.Label != "High" {
		t.Errorf("Severity(high).Label = %q, want High", got.Label)
	}
	if got := Severity("bogus"); got.Label != "Unknown" {
		t.Errorf("Severity(bogus).Label = %q, want Unknown", got.Label)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		at       time.Time
		expected string
	}{
		{name: "Seconds ago", at: now.Add(-30 * time.Second), expected: "just now"},
		{name: "One minute", at: now.Add(-1 * time.Minute), expected: "1 minute ago"},
		{name: "Minutes", at: now.Add(-45 * time.Minute), expected: "45 minutes ago"},
		{name: "Hours", at: now.Add(-3 * time.Hour), expected: "3 hours ago"},
		{name: "Days", at: now.Add(-2 * 24 * time.Hour), expected: "2 days ago"},
		{name: "Weeks", at: now.Add(-2 * 7 * 24 * time.Hour), expected: "2 weeks ago"},
		{name: "Months", at: now.Add(-70 * 24 * time.Hour), expected: "2 months ago"},
		{name: "Years", at: now.Add(-2 * 365 * 24 * time.Hour), expected: "2 years ago"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := RelativeTime(tc.at, now)
			if got != tc.expected {
				t.Errorf("RelativeTime() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{name: "Short text untouched", text: "hello", maxLen: 10, expected: "hello"},
		{name: "Exact length untouched", text: "hello", maxLen: 5, expected: "hello"},
		{name: "Truncated with ellipsis", text: "hello world", maxLen: 8, expected: "hello..."},
		{name: "Tiny budget", text: "hello", maxLen: 2, expected: ".."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Truncate(tc.text, tc.maxLen)
			if got != tc.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tc.text, tc.maxLen, got, tc.expected)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("late BLIGHT disease"); got != "Late Blight Disease" {
		t.Errorf("TitleCase() = %q, want %q", got, "Late Blight Disease")
	}
}

func TestSlugify(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "Simple", text: "Late Blight", expected: "late-blight"},
		{name: "Punctuation dropped", text: "Tomato (Late) Blight!", expected: "tomato-late-blight"},
		{name: "Dash runs collapse", text: "a -- b", expected: "a-b"},
		{name: "Surrounding whitespace", text: "  Rust  ", expected: "rust"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Slugify(tc.text)
			if got != tc.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tc.text, got, tc.expected)
			}
		})
	}
}
