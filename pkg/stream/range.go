// =============================================================================
// pkg/stream/range.go - HTTP Range Header Parsing
// =============================================================================
package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRange is returned for a header that is not a single
	// "bytes=" range.
	ErrMalformedRange = errors.New("malformed range")
	// ErrUnsatisfiableRange is returned for ranges with non-numeric bounds or
	// bounds outside the content.
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
)

// Range is a validated byte interval: 0 <= Start <= End < Total.
type Range struct {
	Start int64
	End   int64 // inclusive
	Total int64
}

// Length returns the number of bytes in the range.
func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ContentRange formats the Content-Range header value.
func (r Range) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// ParseRange validates a Range header value against total. Accepted forms are
// "bytes=N-M", "bytes=N-" and the suffix form "bytes=-N".
func ParseRange(header string, total int64) (Range, error) {
	rangeSet, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}
	first, last, ok := strings.Cut(strings.TrimSpace(rangeSet), "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	var start, end int64
	if first == "" {
		n, err := parseOffset(last)
		if err != nil {
			return Range{}, fmt.Errorf("%w: suffix %q", ErrUnsatisfiableRange, last)
		}
		start = total - n
		if start < 0 {
			start = 0
		}
		end = total - 1
	} else {
		var err error
		if start, err = parseOffset(first); err != nil {
			return Range{}, fmt.Errorf("%w: start %q", ErrUnsatisfiableRange, first)
		}
		end = total - 1
		if last != "" {
			if end, err = parseOffset(last); err != nil {
				return Range{}, fmt.Errorf("%w: end %q", ErrUnsatisfiableRange, last)
			}
		}
	}

	if start > end || end >= total {
		return Range{}, fmt.Errorf("%w: %d-%d of %d", ErrUnsatisfiableRange, start, end, total)
	}
	return Range{Start: start, End: end, Total: total}, nil
}

func parseOffset(s string) (int64, error) {
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
