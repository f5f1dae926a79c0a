package stream

import (
	"errors"
	"testing"
)

func TestParseRangeValid(t *testing.T) {
	tests := []struct {
		header string
		total  int64
		want   Range
	}{
		{"bytes=0-0", 10, Range{0, 0, 10}},
		{"bytes=0-9", 10, Range{0, 9, 10}},
		{"bytes=3-7", 10, Range{3, 7, 10}},
		{"bytes=4-", 10, Range{4, 9, 10}},
		{"bytes=-3", 10, Range{7, 9, 10}},
		{"bytes=-10", 10, Range{0, 9, 10}},
		{"bytes=-25", 10, Range{0, 9, 10}},
		{" bytes= 2 - 5 ", 10, Range{2, 5, 10}},
	}
	for _, tc := range tests {
		got, err := ParseRange(tc.header, tc.total)
		if err != nil {
			t.Fatalf("ParseRange(%q, %d): %v", tc.header, tc.total, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRange(%q, %d) = %+v, want %+v", tc.header, tc.total, got, tc.want)
		}
	}
}

func TestParseRangeUnsatisfiable(t *testing.T) {
	tests := []struct {
		header string
		total  int64
	}{
		{"bytes=5-3", 10},
		{"bytes=0-10", 10},
		{"bytes=10-", 10},
		{"bytes=abc-5", 10},
		{"bytes=1-x", 10},
		{"bytes=-", 10},
		{"bytes=-0", 10},
		{"bytes=+1-2", 10},
		{"bytes=0-1,3-4", 10},
		{"bytes=1-2-3", 10},
		{"bytes=0-0", 0},
		{"bytes=-5", 0},
		{"bytes=99999999999999999999-", 10},
	}
	for _, tc := range tests {
		_, err := ParseRange(tc.header, tc.total)
		if !errors.Is(err, ErrUnsatisfiableRange) {
			t.Fatalf("ParseRange(%q, %d): expected ErrUnsatisfiableRange, got %v", tc.header, tc.total, err)
		}
	}
}

func TestParseRangeMalformed(t *testing.T) {
	for _, header := range []string{"items=0-5", "0-5", "bytes=5", "bytes="} {
		_, err := ParseRange(header, 10)
		if !errors.Is(err, ErrMalformedRange) {
			t.Fatalf("ParseRange(%q): expected ErrMalformedRange, got %v", header, err)
		}
	}
}

func TestRangeContentRange(t *testing.T) {
	r := Range{Start: 100, End: 199, Total: 1000}
	if r.Length() != 100 {
		t.Fatalf("Length = %d", r.Length())
	}
	if got := r.ContentRange(); got != "bytes 100-199/1000" {
		t.Fatalf("ContentRange = %q", got)
	}
}
