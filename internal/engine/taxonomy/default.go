package taxonomy

import (
	_ "embed"

	"github.com/hejijunhao/amber/internal/model"
)

//go:embed portfolio.json
var portfolioJSON []byte

// DefaultTopic is the root topic of the built-in tree.
const DefaultTopic = "portfolio"

// Default returns the built-in portfolio tree that ships with Amber. It is
// what runs when no tree source is configured. The tree is not yet cached.
func Default() *model.Tree {
	t, err := Parse(portfolioJSON, FormatJSON, DefaultTopic)
	if err != nil {
		panic("taxonomy: built-in tree is invalid: " + err.Error())
	}
	return t
}
