package tui

import (
	"fmt"

	"github.com/subloop-cli/subloop/icon"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/util"
)

// listItem implements list.Item for the dashboard's lists.
type listItem struct {
	internal any
}

func (t *listItem) Title() string {
	switch e := t.internal.(type) {
	case segment.Bookmark:
		return icon.Get(icon.Loop) + " " + e.Label
	default:
		return t.FilterValue()
	}
}

func (t *listItem) Description() string {
	switch e := t.internal.(type) {
	case segment.Bookmark:
		desc := fmt.Sprintf("%s - %s", util.FormatTimestamp(float64(e.Start)), util.FormatTimestamp(float64(e.End)))
		if e.Count > 0 {
			desc += fmt.Sprintf(", %s", util.Quantify(e.Count, "time", "times"))
		}
		return desc
	default:
		return ""
	}
}

func (t *listItem) FilterValue() string {
	switch e := t.internal.(type) {
	case segment.Bookmark:
		return e.Label
	default:
		return ""
	}
}
