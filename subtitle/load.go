package subtitle

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/subloop-cli/subloop/filesystem"
	"github.com/subloop-cli/subloop/util"
)

var extensions = map[string]Format{
	".srt":    SRT,
	".vtt":    VTT,
	".webvtt": VTT,
	".json3":  JSON3,
	".lrc":    LRC,
}

// FormatOf guesses the format from the file extension.
func FormatOf(name string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// Parse decodes r according to the extension of name.
func Parse(name string, r io.Reader) (*Track, error) {
	format, ok := FormatOf(name)
	if !ok {
		return nil, fmt.Errorf("unsupported subtitle format: %s", filepath.Ext(name))
	}

	var (
		track *Track
		err   error
	)
	switch format {
	case SRT:
		track, err = ParseSRT(r)
	case VTT:
		track, err = ParseVTT(r)
	case JSON3:
		track, err = ParseJSON3(r)
	case LRC:
		track, err = ParseLRC(r)
	}
	if err != nil {
		return nil, err
	}

	base := filepath.Base(name)
	track.ID = base
	track.Source = name
	if track.Language == "" {
		track.Language = LanguageOf(base)
	}
	if track.Label == "" {
		track.Label = util.FileStem(base)
	}
	return track, nil
}

// Load reads and parses a subtitle file from the active filesystem.
func Load(path string) (*Track, error) {
	data, err := filesystem.API().ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load subtitle: %w", err)
	}

	track, err := Parse(path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load subtitle %s: %w", filepath.Base(path), err)
	}
	return track, nil
}

var (
	langRe = regexp.MustCompile(`^[a-zA-Z]{2,3}(?:[-_][a-zA-Z0-9]{2,4})?$`)
	flags  = []string{"forced", "sdh", "cc", "hi", "default"}
)

// LanguageOf extracts the language tag from names like movie.en.srt,
// movie.pt-BR.vtt or movie.en.forced.srt.
func LanguageOf(name string) string {
	parts := strings.Split(util.FileStem(name), ".")
	i := len(parts) - 1
	if i > 1 && lo.Contains(flags, strings.ToLower(parts[i])) {
		i--
	}
	if i > 0 && langRe.MatchString(parts[i]) {
		return parts[i]
	}
	return ""
}

// Candidate is a subtitle file found next to a media file.
type Candidate struct {
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	Label    string `json:"label"`
	Format   Format `json:"format"`
}

func (c Candidate) key() string {
	return strings.TrimSpace(c.Language + " " + c.Label)
}

// Discover lists subtitle files sharing the stem of mediaPath, sorted by name.
func Discover(mediaPath string) ([]Candidate, error) {
	dir := filepath.Dir(mediaPath)
	stem := util.FileStem(mediaPath)

	entries, err := filesystem.API().ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discover subtitles: %w", err)
	}

	var candidates []Candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		format, ok := FormatOf(name)
		if !ok || !strings.HasPrefix(name, stem) {
			continue
		}

		// the stem must end at a dot: "movie.en.srt" matches "movie.mkv", "movie2.srt" doesn't
		rest := strings.TrimPrefix(name, stem)
		if !strings.HasPrefix(rest, ".") {
			continue
		}

		candidates = append(candidates, Candidate{
			Path:     filepath.Join(dir, name),
			Language: LanguageOf("_" + rest),
			Label:    util.FileStem(name),
			Format:   format,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})
	return candidates, nil
}

// Matches ranks candidates against query. An exact language match comes first,
// then fuzzy matches on language and label by distance.
func Matches(candidates []Candidate, query string) []Candidate {
	query = strings.TrimSpace(query)
	if query == "" {
		return candidates
	}

	exact := lo.Filter(candidates, func(c Candidate, _ int) bool {
		return strings.EqualFold(c.Language, query)
	})

	ranks := fuzzy.RankFindNormalizedFold(query, lo.Map(candidates, func(c Candidate, _ int) string {
		return c.key()
	}))
	sort.Sort(ranks)

	fuzzyMatches := lo.Map(ranks, func(r fuzzy.Rank, _ int) Candidate {
		return candidates[r.OriginalIndex]
	})

	return lo.UniqBy(append(exact, fuzzyMatches...), func(c Candidate) string {
		return c.Path
	})
}

// Select picks the best match for query.
func Select(candidates []Candidate, query string) mo.Option[Candidate] {
	matches := Matches(candidates, query)
	if len(matches) == 0 {
		return mo.None[Candidate]()
	}
	return mo.Some(matches[0])
}
