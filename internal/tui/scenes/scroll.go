// Package scenes provides the report viewer's tab contents.
package scenes

// scroller tracks a cursor over a list taller than the screen.
type scroller struct {
	cursor  int
	offset  int
	maxRows int
	total   int
}

func newScroller(total int) scroller {
	return scroller{maxRows: 10, total: total}
}

// resize fits the visible window to a terminal of the given height,
// leaving room for chrome above and below the list.
func (s *scroller) resize(height, chrome int) {
	s.maxRows = max(5, height-chrome)
	if s.cursor >= s.offset+s.maxRows {
		s.offset = s.cursor - s.maxRows + 1
	}
}

// handleKey moves the cursor and reports whether key was a navigation key.
func (s *scroller) handleKey(key string) bool {
	if s.total == 0 {
		return false
	}
	switch key {
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
			if s.cursor < s.offset {
				s.offset = s.cursor
			}
		}
	case "down", "j":
		if s.cursor < s.total-1 {
			s.cursor++
			if s.cursor >= s.offset+s.maxRows {
				s.offset = s.cursor - s.maxRows + 1
			}
		}
	case "pgup":
		s.cursor = max(0, s.cursor-s.maxRows)
		s.offset = max(0, s.offset-s.maxRows)
	case "pgdown":
		s.cursor = min(s.total-1, s.cursor+s.maxRows)
		s.offset = min(max(0, s.total-s.maxRows), s.offset+s.maxRows)
	case "home", "g":
		s.cursor, s.offset = 0, 0
	case "end", "G":
		s.cursor = s.total - 1
		s.offset = max(0, s.total-s.maxRows)
	default:
		return false
	}
	return true
}

// window returns the visible index range [start, end).
func (s *scroller) window() (int, int) {
	return s.offset, min(s.offset+s.maxRows, s.total)
}

// Cursor returns the selected index.
func (s *scroller) Cursor() int {
	return s.cursor
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
