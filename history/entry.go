package history

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/util"
)

// Entry is one video's preserved state as listed to the user.
type Entry struct {
	navigation.PreservedState
}

// Title is the file name of the video, or its id when the URL is unknown.
func (e Entry) Title() string {
	if e.URL == "" {
		return e.VideoID
	}
	return filepath.Base(strings.TrimPrefix(e.URL, "file://"))
}

// Position describes where playback stopped and the loop that was active.
func (e Entry) Position() string {
	pos := util.FormatTimestamp(e.CurrentTime)
	if e.ActiveLoop != nil {
		pos += fmt.Sprintf(" (loop %s-%s)",
			util.FormatTimestamp(e.ActiveLoop.StartTime),
			util.FormatTimestamp(e.ActiveLoop.EndTime),
		)
	}
	return pos
}

func (e Entry) String() string {
	return fmt.Sprintf("%s at %s, %s", e.Title(), e.Position(), humanize.Time(e.PreservedAt))
}
