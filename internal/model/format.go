package model

import "fmt"

// FormatOption represents one selectable quality tier for a resolved URL.
type FormatOption struct {
	Height   int    // video height in pixels, unique within a session
	FormatID string // extractor format identifier for this height
	Filesize int64  // approximate size in bytes, 0 if unknown
}

// Label returns the button caption for this option (e.g. "720p").
func (f FormatOption) Label() string {
	return fmt.Sprintf("%dp", f.Height)
}

// Session holds the last resolved URL for a chat together with the quality
// options that were offered. A chat has at most one live session; a new
// resolution overwrites the previous one.
type Session struct {
	URL     string
	Formats []FormatOption
}

// FormatForHeight returns the offered option matching the given height.
func (s Session) FormatForHeight(height int) (FormatOption, bool) {
	for _, f := range s.Formats {
		if f.Height == height {
			return f, true
		}
	}
	return FormatOption{}, false
}
