package progress

import (
	"errors"
	"testing"
)

func bits(n int, set ...int) []bool {
	b := make([]bool, n)
	for _, i := range set {
		b[i] = true
	}
	return b
}

func TestPieceSpan(t *testing.T) {
	tests := []struct {
		offset, length, piece int64
		want                  Span
	}{
		{0, 100, 10, Span{0, 9}},
		{5, 10, 10, Span{0, 1}},
		{10, 10, 10, Span{1, 1}},
		{95, 1, 10, Span{9, 9}},
		{25, 40, 16, Span{1, 4}},
	}
	for _, tc := range tests {
		got, err := PieceSpan(tc.offset, tc.length, tc.piece)
		if err != nil {
			t.Fatalf("PieceSpan(%d,%d,%d): %v", tc.offset, tc.length, tc.piece, err)
		}
		if got != tc.want {
			t.Fatalf("PieceSpan(%d,%d,%d) = %+v, want %+v", tc.offset, tc.length, tc.piece, got, tc.want)
		}
	}
}

func TestFileFractionAllAndNone(t *testing.T) {
	// file covers pieces 2..5
	all := bits(8, 2, 3, 4, 5)
	f, err := FileFraction(20, 40, 10, all)
	if err != nil || f != 1.0 {
		t.Fatalf("expected 1.0, got %v (%v)", f, err)
	}

	f, err = FileFraction(20, 40, 10, bits(8, 0, 1, 6, 7))
	if err != nil || f != 0.0 {
		t.Fatalf("expected 0.0, got %v (%v)", f, err)
	}

	f, err = FileFraction(20, 40, 10, bits(8, 2, 5))
	if err != nil || f != 0.5 {
		t.Fatalf("expected 0.5, got %v (%v)", f, err)
	}
}

func TestFileFractionErrors(t *testing.T) {
	if _, err := FileFraction(0, 10, 10, nil); !errors.Is(err, ErrNoBitfield) {
		t.Fatalf("expected ErrNoBitfield, got %v", err)
	}
	if _, err := FileFraction(0, 100, 10, bits(3)); !errors.Is(err, ErrPieceOutOfRange) {
		t.Fatalf("expected ErrPieceOutOfRange, got %v", err)
	}
	if _, err := FileFraction(0, 0, 10, bits(3)); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := FileFraction(0, 10, 0, bits(3)); !errors.Is(err, ErrBadPieceLength) {
		t.Fatalf("expected ErrBadPieceLength, got %v", err)
	}
}

func TestFileProgressFallsBackToOverall(t *testing.T) {
	if got := FileProgress(0, 10, 10, nil, 0.37); got != 0.37 {
		t.Fatalf("nil bitfield: expected fallback 0.37, got %v", got)
	}
	if got := FileProgress(0, 1000, 10, bits(5, 0, 1), 0.42); got != 0.42 {
		t.Fatalf("short bitfield: expected fallback 0.42, got %v", got)
	}
	if got := FileProgress(0, 20, 10, bits(2, 0, 1), 0.1); got != 1.0 {
		t.Fatalf("expected piece based 1.0, got %v", got)
	}
}

func TestHeadReady(t *testing.T) {
	// 10 pieces, head = max(5, 0) = 5, need more than 2.5 present
	if HeadReady(0, 100, 10, bits(10, 0, 1), 5) {
		t.Fatalf("2 of 5 head pieces must not be ready")
	}
	if !HeadReady(0, 100, 10, bits(10, 0, 1, 2), 5) {
		t.Fatalf("3 of 5 head pieces must be ready")
	}
	// single piece file
	if !HeadReady(0, 5, 10, bits(1, 0), 5) {
		t.Fatalf("complete single piece file must be ready")
	}
	if HeadReady(0, 5, 10, nil, 5) {
		t.Fatalf("nil bitfield is never ready")
	}
}

func TestHeadFraction(t *testing.T) {
	// file covers pieces 10..209 (200 pieces), head = 5% = 10 pieces
	b := bits(220, 10, 11, 12, 13)
	if got := HeadFraction(100, 2000, 10, b, 5); got != 0.4 {
		t.Fatalf("expected 0.4, got %v", got)
	}
	if got := HeadFraction(0, 10, 10, nil, 5); got != 0 {
		t.Fatalf("nil bitfield: expected 0, got %v", got)
	}
}

func TestSpanHead(t *testing.T) {
	tests := []struct {
		span Span
		min  int
		want Span
	}{
		{Span{10, 209}, 5, Span{10, 19}}, // 5% of 200
		{Span{0, 9}, 5, Span{0, 4}},
		{Span{3, 4}, 5, Span{3, 4}},
		{Span{7, 7}, 0, Span{7, 7}},
	}
	for _, tc := range tests {
		if got := tc.span.Head(tc.min); got != tc.want {
			t.Fatalf("%+v.Head(%d) = %+v, want %+v", tc.span, tc.min, got, tc.want)
		}
	}
}
