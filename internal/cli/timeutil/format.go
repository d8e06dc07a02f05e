// Package timeutil provides time formatting utilities for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat is the format used for displaying local times in CLI output.
// Uses Go's reference time: Mon Jan 2 15:04:05 2006.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatTime returns a local time string for CLI display.
func FormatTime(t time.Time) string {
	return t.Local().Format(LocalTimeFormat)
}

// Ago renders how long ago t was, coarsely. Run histories span minutes to
// months, so precision below the leading unit is noise.
func Ago(t time.Time) string {
	return AgoSince(t, time.Now())
}

// AgoSince is Ago against an explicit reference time.
func AgoSince(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours())/24)
	default:
		return t.Local().Format("2006-01-02")
	}
}
