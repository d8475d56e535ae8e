// Package subtitle holds the track and cue model together with parsers for
// the subtitle formats subloop can load.
package subtitle

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Format identifies a subtitle file format.
type Format string

const (
	SRT   Format = "srt"
	VTT   Format = "vtt"
	JSON3 Format = "json3"
	LRC   Format = "lrc"
)

// Formats lists every supported format.
var Formats = []Format{SRT, VTT, JSON3, LRC}

// Cue is an immutable timed text span. Times are in seconds.
type Cue struct {
	ID        string  `json:"id"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Text      string  `json:"text"`
	Position  string  `json:"position,omitempty"`
	Style     string  `json:"style,omitempty"`
}

// Duration of the cue in seconds.
func (c Cue) Duration() float64 {
	return c.EndTime - c.StartTime
}

var tagRe = regexp.MustCompile(`</?[^>]+>|\{\\[^}]*\}`)

// Plain returns the cue text with markup tags removed.
func (c Cue) Plain() string {
	return strings.TrimSpace(tagRe.ReplaceAllString(c.Text, ""))
}

// Track is a loaded subtitle track.
type Track struct {
	ID              string `json:"id"`
	Language        string `json:"language,omitempty"`
	Label           string `json:"label,omitempty"`
	Cues            []Cue  `json:"cues"`
	IsAutoGenerated bool   `json:"isAutoGenerated"`
	Source          string `json:"source,omitempty"`
}

// Name returns a human readable track name.
func (t *Track) Name() string {
	switch {
	case t.Label != "" && t.Language != "":
		return fmt.Sprintf("%s (%s)", t.Label, t.Language)
	case t.Label != "":
		return t.Label
	case t.Language != "":
		return t.Language
	default:
		return t.ID
	}
}

// Span returns the first cue start and the last cue end.
func (t *Track) Span() (start, end float64) {
	if len(t.Cues) == 0 {
		return 0, 0
	}
	start = t.Cues[0].StartTime
	for _, c := range t.Cues {
		end = max(end, c.EndTime)
	}
	return start, end
}

// normalize sorts cues by start, drops empty or inverted ones and makes IDs unique.
func normalize(cues []Cue) []Cue {
	cues = lo.Filter(cues, func(c Cue, _ int) bool {
		return c.StartTime >= 0 && c.EndTime > c.StartTime && strings.TrimSpace(c.Text) != ""
	})

	slices.SortStableFunc(cues, func(a, b Cue) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		default:
			return 0
		}
	})

	seen := make(map[string]struct{}, len(cues))
	for i := range cues {
		id := cues[i].ID
		if _, dup := seen[id]; id == "" || dup {
			id = strconv.Itoa(i + 1)
			for _, taken := seen[id]; taken; _, taken = seen[id] {
				id += "'"
			}
		}
		seen[id] = struct{}{}
		cues[i].ID = id
	}

	return cues
}
