// Package icon renders status symbols in the variant the user picked:
// emoji, nerd-font glyphs, plain words, kaomoji or colored squares.
package icon

import (
	"github.com/spf13/viper"
	"github.com/subloop-cli/subloop/key"
)

const (
	emoji   = "emoji"
	nerd    = "nerd"
	plain   = "plain"
	kaomoji = "kaomoji"
	squares = "squares"
)

// AvailableVariants lists the accepted values of icons.variant.
func AvailableVariants() []string {
	return []string{emoji, nerd, plain, kaomoji, squares}
}

type iconDef struct {
	emoji   string
	nerd    string
	plain   string
	kaomoji string
	squares string
}

// in returns the symbol for variant. Unknown variants fall back to plain.
func (d *iconDef) in(variant string) string {
	switch variant {
	case emoji:
		return d.emoji
	case nerd:
		return d.nerd
	case kaomoji:
		return d.kaomoji
	case squares:
		return d.squares
	default:
		return d.plain
	}
}

// Get renders i in the configured variant. Unregistered icons render empty.
func Get(i Icon) string {
	def, ok := icons[i]
	if !ok {
		return ""
	}
	return def.in(viper.GetString(key.IconsVariant))
}
