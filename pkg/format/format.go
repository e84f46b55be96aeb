// Package format holds pure display-formatting helpers. Nothing here keeps
// state or talks to the network.
package format

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// FileSize renders a byte count in a human-readable unit.
func FileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	if bytes < 0 {
		return "N/A"
	}

	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	return fmt.Sprintf("%s %s", trimZeros(fmt.Sprintf("%.2f", value)), units[i])
}

// Percentage renders a 0-1 value as a percentage with the given number of
// decimals.
func Percentage(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value*100)
}

// ConfidenceInfo is a confidence value prepared for display.
type ConfidenceInfo struct {
	Percentage string
	Label      string
	Class      string
	Value      float64
}

// Confidence labels a 0-1 confidence value for presentation.
func Confidence(value float64) ConfidenceInfo {
	info := ConfidenceInfo{
		Percentage: Percentage(value, 1),
		Value:      value,
	}

	switch {
	case value >= 0.8:
		info.Label, info.Class = "Very High", "high"
	case value >= 0.6:
		info.Label, info.Class = "High", "medium-high"
	case value >= 0.4:
		info.Label, info.Class = "Medium", "medium"
	case value >= 0.2:
		info.Label, info.Class = "Low", "low"
	default:
		info.Label, info.Class = "Very Low", "very-low"
	}
	return info
}

// SeverityInfo is a severity level prepared for display.
type SeverityInfo struct {
	Label string
	Icon  string
	Class string
}

// Severity maps a severity level onto its display attributes.
func Severity(level string) SeverityInfo {
	switch level {
	case "high":
		return SeverityInfo{Label: "High", Icon: "🔴", Class: "severity-high"}
	case "medium":
		return SeverityInfo{Label: "Medium", Icon: "🟡", Class: "severity-medium"}
	case "low":
		return SeverityInfo{Label: "Low", Icon: "🟢", Class: "severity-low"}
	default:
		return SeverityInfo{Label: "Unknown", Icon: "⚪", Class: "severity-unknown"}
	}
}

// RelativeTime renders how long ago t was, in the coarsest sensible unit.
func RelativeTime(t time.Time, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	case diff < 28*24*time.Hour:
		return plural(int(diff.Hours()/(24*7)), "week") + " ago"
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/(24*30)), "month") + " ago"
	default:
		return plural(int(diff.Hours()/(24*365)), "year") + " ago"
	}
}

// Truncate shortens text to maxLen runes, appending an ellipsis when
// anything was cut.
func Truncate(text string, maxLen int) string {
	const suffix = "..."
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= len(suffix) {
		return suffix[:maxLen]
	}
	return string(runes[:maxLen-len(suffix)]) + suffix
}

// TitleCase upper-cases the first letter of every word.
func TitleCase(text string) string {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
var dashRuns = regexp.MustCompile(`-{2,}`)

// Slugify turns text into a URL-safe slug.
func Slugify(text string) string {
	slug := strings.ToLower(strings.TrimSpace(text))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = dashRuns.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func trimZeros(s string) string {
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
