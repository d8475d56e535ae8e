package subtitle

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// voiceRe captures the speaker of a <v Speaker> span.
var voiceRe = regexp.MustCompile(`<v(?:\.[\w.-]+)?\s+([^>]+)>`)

// ParseVTT parses a WebVTT file. NOTE, STYLE and REGION blocks are skipped.
// A Language header, when present, becomes the track language.
func ParseVTT(r io.Reader) (*Track, error) {
	groups, err := blocks(r)
	if err != nil {
		return nil, fmt.Errorf("vtt: %w", err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("vtt: empty file")
	}

	header := groups[0]
	if !strings.HasPrefix(strings.TrimPrefix(header[0], "\ufeff"), "WEBVTT") {
		return nil, fmt.Errorf("vtt: missing WEBVTT header")
	}

	track := &Track{}
	for _, line := range header[1:] {
		if k, v, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(k), "language") {
			track.Language = strings.TrimSpace(v)
		}
	}

	var cues []Cue
	for _, lines := range groups[1:] {
		first := strings.Fields(lines[0])
		if len(first) > 0 {
			switch first[0] {
			case "NOTE", "STYLE", "REGION":
				continue
			}
		}

		var id string
		if !strings.Contains(lines[0], "-->") {
			id = strings.TrimSpace(lines[0])
			lines = lines[1:]
		}
		if len(lines) == 0 {
			continue
		}

		start, end, settings, err := timing(lines[0])
		if err != nil {
			return nil, fmt.Errorf("vtt cue %q: %w", id, err)
		}

		cue := Cue{
			ID:        id,
			StartTime: start,
			EndTime:   end,
			Text:      strings.Join(lines[1:], "\n"),
			Position:  settings,
		}
		if class := voiceRe.FindStringSubmatch(cue.Text); class != nil {
			cue.Style = class[1]
		}
		cues = append(cues, cue)
	}

	track.Cues = normalize(cues)
	return track, nil
}
