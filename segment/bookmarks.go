package segment

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cast"
	"github.com/subloop-cli/subloop/filesystem"
	"github.com/subloop-cli/subloop/util"
	"gopkg.in/yaml.v3"
)

// Timestamp is a position in seconds that reads either a number or a clock string from YAML:
//
//	start: 83.5
//	start: "1:23.5"
type Timestamp float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Timestamp) UnmarshalYAML(node *yaml.Node) error {
	if f, err := cast.ToFloat64E(node.Value); err == nil {
		*t = Timestamp(f)
		return nil
	}

	f, err := util.ParseTimestamp(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = Timestamp(f)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (t Timestamp) MarshalYAML() (any, error) {
	return util.FormatTimestamp(float64(t)), nil
}

// Bookmark is a saved loop.
type Bookmark struct {
	Label string    `yaml:"label"`
	Start Timestamp `yaml:"start"`
	End   Timestamp `yaml:"end"`
	Count int       `yaml:"count,omitempty"`
}

// Loop converts the bookmark into a loop ready for Create.
func (b Bookmark) Loop() Loop {
	return Loop{
		Label:     b.Label,
		StartTime: float64(b.Start),
		EndTime:   float64(b.End),
		LoopCount: b.Count,
	}
}

// Bookmarks is the content of a loops file.
type Bookmarks struct {
	Media string     `yaml:"media,omitempty"`
	Loops []Bookmark `yaml:"loops"`
}

// Find returns the bookmark whose label matches name, ignoring case.
func (b *Bookmarks) Find(name string) mo.Option[Bookmark] {
	found, ok := lo.Find(b.Loops, func(bm Bookmark) bool {
		return strings.EqualFold(bm.Label, name)
	})
	if !ok {
		return mo.None[Bookmark]()
	}
	return mo.Some(found)
}

// Add appends loop as a bookmark.
func (b *Bookmarks) Add(loop Loop) {
	label := loop.Label
	if label == "" {
		label = fmt.Sprintf("loop %d", len(b.Loops)+1)
	}
	b.Loops = append(b.Loops, Bookmark{
		Label: label,
		Start: Timestamp(loop.StartTime),
		End:   Timestamp(loop.EndTime),
		Count: loop.LoopCount,
	})
}

// Validate checks every bookmark and reports the first invalid one.
func (b *Bookmarks) Validate() error {
	for i, bm := range b.Loops {
		if err := bm.Loop().Validate(); err != nil {
			return fmt.Errorf("loop %d (%s): %w", i+1, bm.Label, err)
		}
	}
	return nil
}

// LoadBookmarks reads a loops file.
func LoadBookmarks(path string) (*Bookmarks, error) {
	data, err := filesystem.API().ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read loops: %w", err)
	}

	var b Bookmarks
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse loops %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// SaveBookmarks writes b to path, creating parent directories.
func SaveBookmarks(path string, b *Bookmarks) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return err
	}

	fs := filesystem.API()
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return fs.WriteFile(path, data, 0644)
}
