// =============================================================================
// pkg/progress/progress.go - Piece Based File Progress
// =============================================================================
package progress

import (
	"errors"
	"fmt"
)

var (
	ErrNoBitfield      = errors.New("piece bitfield unavailable")
	ErrPieceOutOfRange = errors.New("piece index outside bitfield")
	ErrEmptyFile       = errors.New("file has no bytes")
	ErrBadPieceLength  = errors.New("piece length must be positive")
)

// Span is the inclusive range of pieces covering one file.
type Span struct {
	First, Last int
}

// Count returns the number of pieces in the span.
func (s Span) Count() int { return s.Last - s.First + 1 }

// PieceSpan maps a file's byte interval inside the torrent to piece indices.
func PieceSpan(offset, length, pieceLength int64) (Span, error) {
	if pieceLength <= 0 {
		return Span{}, ErrBadPieceLength
	}
	if length <= 0 {
		return Span{}, ErrEmptyFile
	}
	return Span{
		First: int(offset / pieceLength),
		Last:  int((offset + length - 1) / pieceLength),
	}, nil
}

// FileFraction returns the fraction of the file's pieces present in bitfield.
func FileFraction(offset, length, pieceLength int64, bitfield []bool) (float64, error) {
	if bitfield == nil {
		return 0, ErrNoBitfield
	}
	span, err := PieceSpan(offset, length, pieceLength)
	if err != nil {
		return 0, err
	}
	if span.First < 0 || span.Last >= len(bitfield) {
		return 0, fmt.Errorf("%w: pieces %d-%d of %d", ErrPieceOutOfRange, span.First, span.Last, len(bitfield))
	}
	have := 0
	for i := span.First; i <= span.Last; i++ {
		if bitfield[i] {
			have++
		}
	}
	return float64(have) / float64(span.Count()), nil
}

// FileProgress is FileFraction with the whole-torrent progress as fallback.
// It never fails: progress reporting is best effort.
func FileProgress(offset, length, pieceLength int64, bitfield []bool, overall float64) float64 {
	f, err := FileFraction(offset, length, pieceLength, bitfield)
	if err != nil {
		return overall
	}
	return f
}

// HeadFraction is the fraction of the first max(minPieces, 5%) pieces of a
// file that are present. It is 0 when the bitfield is unavailable.
func HeadFraction(offset, length, pieceLength int64, bitfield []bool, minPieces int) float64 {
	span, err := PieceSpan(offset, length, pieceLength)
	if err != nil || bitfield == nil {
		return 0
	}
	head := span.Head(minPieces)

	completed := 0
	for i := head.First; i <= head.Last && i < len(bitfield); i++ {
		if bitfield[i] {
			completed++
		}
	}
	return float64(completed) / float64(head.Count())
}

// Head returns the leading max(minPieces, 5%) pieces of s, capped at s.
func (s Span) Head(minPieces int) Span {
	n := s.Count() / 20
	if n < minPieces {
		n = minPieces
	}
	if n < 1 {
		n = 1
	}
	if n > s.Count() {
		n = s.Count()
	}
	return Span{First: s.First, Last: s.First + n - 1}
}

// HeadReady reports whether enough of the start of a file is present to begin
// playback: more than half of its head pieces.
func HeadReady(offset, length, pieceLength int64, bitfield []bool, minPieces int) bool {
	return HeadFraction(offset, length, pieceLength, bitfield, minPieces) > 0.5
}
