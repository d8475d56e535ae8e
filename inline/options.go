package inline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Options configure a Writer.
type Options struct {
	// Out receives one JSON record per line.
	Out io.Writer
	// Kinds selects the records written. Empty means every kind except positions.
	Kinds []Kind
	// Now stamps records. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) wants(k Kind) bool {
	if len(o.Kinds) == 0 {
		return k != KindPosition
	}
	return lo.Contains(o.Kinds, k)
}

// ParseKinds parses a comma-separated kind list. "all" selects every kind.
func ParseKinds(list string) ([]Kind, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}
	if list == "all" {
		return Kinds, nil
	}

	var kinds []Kind
	for _, name := range strings.Split(list, ",") {
		kind := Kind(strings.ToLower(strings.TrimSpace(name)))
		if !lo.Contains(Kinds, kind) {
			return nil, fmt.Errorf("unknown record kind %q, expected one of %s", name, strings.Join(lo.Map(Kinds, func(k Kind, _ int) string { return string(k) }), ", "))
		}
		kinds = append(kinds, kind)
	}
	return lo.Uniq(kinds), nil
}
