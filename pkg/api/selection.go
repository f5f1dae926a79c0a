// =============================================================================
// pkg/api/selection.go - File Selection Value
// =============================================================================
package api

import "strconv"

// Selection names the file a session streams: either the largest file of the
// torrent (Auto) or an explicit index into its file table.
type Selection struct {
	index    int
	explicit bool
}

// Auto selects the largest file.
func Auto() Selection { return Selection{} }

// Explicit selects the file at index.
func Explicit(index int) Selection { return Selection{index: index, explicit: true} }

// SelectionFromIndex maps the CLI/bridge convention where any negative index
// means auto.
func SelectionFromIndex(index int) Selection {
	if index < 0 {
		return Auto()
	}
	return Explicit(index)
}

func (s Selection) IsAuto() bool { return !s.explicit }

// Index returns the explicit index; ok is false for Auto.
func (s Selection) Index() (index int, ok bool) {
	return s.index, s.explicit
}

func (s Selection) String() string {
	if !s.explicit {
		return "auto"
	}
	return strconv.Itoa(s.index)
}
