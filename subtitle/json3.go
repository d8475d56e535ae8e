package subtitle

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
)

// json3 is the YouTube timed-text payload as served with fmt=json3.
// Unknown fields (window ids, pen ids) are ignored.
type json3 struct {
	WireMagic string       `json:"wireMagic,omitempty"`
	Events    []json3Event `json:"events"`
}

type json3Event struct {
	TStartMs    *int64     `json:"tStartMs,omitempty"`
	DDurationMs *int64     `json:"dDurationMs,omitempty"`
	AAppend     *int       `json:"aAppend,omitempty"`
	Segs        []json3Seg `json:"segs,omitempty"`
}

type json3Seg struct {
	Utf8      string `json:"utf8"`
	TOffsetMs *int64 `json:"tOffsetMs,omitempty"`
}

// newlineOnly reports whether every segment is whitespace or a line break.
func (e json3Event) newlineOnly() bool {
	return lo.EveryBy(e.Segs, func(s json3Seg) bool {
		t := strings.TrimSpace(s.Utf8)
		return t == "" || t == `\n`
	})
}

func (e json3Event) text() string {
	var sb strings.Builder
	for _, s := range e.Segs {
		sb.WriteString(s.Utf8)
	}
	return strings.TrimSpace(sb.String())
}

// ParseJSON3 parses YouTube json3 captions. Tracks whose segments carry
// per-word offsets, or that use append events, are marked auto-generated.
func ParseJSON3(r io.Reader) (*Track, error) {
	var raw json3
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("json3: decode: %w", err)
	}

	track := &Track{}
	var cues []Cue
	for _, e := range raw.Events {
		if e.AAppend != nil || lo.SomeBy(e.Segs, func(s json3Seg) bool { return s.TOffsetMs != nil }) {
			track.IsAutoGenerated = true
		}

		if e.TStartMs == nil || e.DDurationMs == nil || len(e.Segs) == 0 || e.newlineOnly() {
			continue
		}

		start := float64(*e.TStartMs) / 1000
		cues = append(cues, Cue{
			StartTime: start,
			EndTime:   start + float64(*e.DDurationMs)/1000,
			Text:      e.text(),
		})
	}

	// Auto captions overlap: a line stays up until the next one rolls in.
	if track.IsAutoGenerated {
		for i := 0; i+1 < len(cues); i++ {
			if next := cues[i+1].StartTime; cues[i].EndTime > next && next > cues[i].StartTime {
				cues[i].EndTime = next
			}
		}
	}

	track.Cues = normalize(cues)
	return track, nil
}
