package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/subloop-cli/subloop/util"
)

// blocks splits the input into groups of non-empty lines separated by blank lines.
func blocks(r io.Reader) ([][]string, error) {
	var (
		result  [][]string
		current []string
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				result = append(result, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		result = append(result, current)
	}

	return result, scanner.Err()
}

// timing parses "start --> end [settings]".
func timing(line string) (start, end float64, settings string, err error) {
	left, right, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, "", fmt.Errorf("missing --> in %q", line)
	}

	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, "", fmt.Errorf("missing end time in %q", line)
	}

	if start, err = util.ParseTimestamp(left); err != nil {
		return
	}
	if end, err = util.ParseTimestamp(fields[0]); err != nil {
		return
	}
	settings = strings.Join(fields[1:], " ")
	return
}

// ParseSRT parses a SubRip file.
func ParseSRT(r io.Reader) (*Track, error) {
	groups, err := blocks(r)
	if err != nil {
		return nil, fmt.Errorf("srt: %w", err)
	}

	var cues []Cue
	for _, lines := range groups {
		lines[0] = strings.TrimPrefix(lines[0], "\ufeff")

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
			return nil, fmt.Errorf("srt cue %q: %w", id, err)
		}

		cues = append(cues, Cue{
			ID:        id,
			StartTime: start,
			EndTime:   end,
			Text:      strings.Join(lines[1:], "\n"),
			Position:  settings,
		})
	}

	return &Track{Cues: normalize(cues)}, nil
}
