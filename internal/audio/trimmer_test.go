package audio

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestTrimRejectsInvalidRanges(t *testing.T) {
	trimmer := NewTrimmer(TrimmerConfig{})

	cases := []struct {
		name  string
		start int64
		end   int64
	}{
		{name: "negative start", start: -1, end: 1000},
		{name: "end before start", start: 1000, end: 500},
		{name: "zero length", start: 500, end: 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := trimmer.Trim(context.Background(), bytes.NewReader([]byte("mp3")), tc.start, tc.end)
			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestTrimRequiresInput(t *testing.T) {
	trimmer := NewTrimmer(TrimmerConfig{})
	if _, err := trimmer.Trim(context.Background(), nil, 0, 1000); err == nil {
		t.Fatal("expected error for nil input")
	}
}

func TestTrimReportsMissingBinary(t *testing.T) {
	trimmer := NewTrimmer(TrimmerConfig{Binary: "definitely-not-ffmpeg"})
	if _, err := trimmer.Trim(context.Background(), bytes.NewReader([]byte("mp3")), 0, 1000); err == nil {
		t.Fatal("expected error when the binary is missing")
	}
}
