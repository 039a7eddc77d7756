package tools

import (
	"testing"
	"time"
)

// --- formatFileSize ---

func Test_FormatFileSize_Bytes(t *testing.T) {
	got := formatFileSize(500)
	if got != "500 B" {
		t.Errorf("expected '500 B', got '%s'", got)
	}
}

func Test_FormatFileSize_Kilobytes(t *testing.T) {
	got := formatFileSize(2048)
	if got != "2.0 KB" {
		t.Errorf("expected '2.0 KB', got '%s'", got)
	}
}

func Test_FormatFileSize_Megabytes(t *testing.T) {
	got := formatFileSize(3 * 1024 * 1024)
	if got != "3.0 MB" {
		t.Errorf("expected '3.0 MB', got '%s'", got)
	}
}

// --- formatDuration ---

func Test_FormatDuration_Seconds(t *testing.T) {
	got := formatDuration(42 * time.Second)
	if got != "42s" {
		t.Errorf("expected '42s', got '%s'", got)
	}
}

func Test_FormatDuration_Minutes(t *testing.T) {
	got := formatDuration(3*time.Minute + 5*time.Second)
	if got != "3m5s" {
		t.Errorf("expected '3m5s', got '%s'", got)
	}
}

func Test_FormatDuration_Hours(t *testing.T) {
	got := formatDuration(2*time.Hour + 30*time.Minute)
	if got != "2h30m" {
		t.Errorf("expected '2h30m', got '%s'", got)
	}
}
