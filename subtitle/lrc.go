package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// LastLineDuration is how long the final LRC line stays visible, since nothing follows it.
const LastLineDuration = 5.0

var (
	// [00:12.34], [00:12:34] or [00:12]
	lrcStampRe = regexp.MustCompile(`\[(\d+):(\d+)(?:[.:](\d+))?\]`)

	// [ar:Artist], [la:en]
	lrcMetaRe = regexp.MustCompile(`^\[([a-z]+):(.+)\]$`)
)

type lrcLine struct {
	at   float64
	text string
}

// ParseLRC parses line-synced lyrics. A line may carry several timestamps;
// each line ends where the next one starts.
func ParseLRC(r io.Reader) (*Track, error) {
	track := &Track{}
	var lines []lrcLine

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if meta := lrcMetaRe.FindStringSubmatch(line); meta != nil {
			value := strings.TrimSpace(meta[2])
			switch strings.ToLower(meta[1]) {
			case "la", "lang":
				track.Language = value
			case "ti":
				track.Label = value
			}
			continue
		}

		stamps := lrcStampRe.FindAllStringSubmatchIndex(line, -1)
		if len(stamps) == 0 {
			continue
		}
		text := strings.TrimSpace(line[stamps[len(stamps)-1][1]:])

		for _, loc := range stamps {
			mins, _ := strconv.Atoi(line[loc[2]:loc[3]])
			secs, _ := strconv.Atoi(line[loc[4]:loc[5]])
			at := float64(mins*60 + secs)
			if loc[6] >= 0 {
				frac := line[loc[6]:loc[7]]
				n, _ := strconv.Atoi(frac)
				switch len(frac) {
				case 1:
					at += float64(n) / 10
				case 2:
					at += float64(n) / 100
				default:
					at += float64(n) / 1000
				}
			}
			lines = append(lines, lrcLine{at: at, text: text})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lrc: %w", err)
	}

	slices.SortStableFunc(lines, func(a, b lrcLine) int {
		switch {
		case a.at < b.at:
			return -1
		case a.at > b.at:
			return 1
		default:
			return 0
		}
	})

	cues := make([]Cue, 0, len(lines))
	for i, l := range lines {
		end := l.at + LastLineDuration
		if i+1 < len(lines) {
			end = lines[i+1].at
		}
		// Empty lines only mark where the previous line stops.
		cues = append(cues, Cue{StartTime: l.at, EndTime: end, Text: l.text})
	}

	track.Cues = normalize(cues)
	return track, nil
}
