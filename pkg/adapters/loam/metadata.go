package loam

import "github.com/goflowspace/goflow/pkg/domain"

// NodeMetadata is the frontmatter of a story document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type NodeMetadata struct {
	ID       string              `json:"id" mapstructure:"id"`
	Type     string              `json:"type" mapstructure:"type"`
	Title    string              `json:"title" mapstructure:"title"`
	Color    string              `json:"color" mapstructure:"color"`
	Position *domain.Coordinates `json:"position" mapstructure:"position"`

	// To is shorthand for a single unconditional transition.
	To          string             `json:"to" mapstructure:"to"`
	Transitions []LoaderTransition `json:"transitions" mapstructure:"transitions"`

	// Options expand into one choice node per entry, placed between this
	// node and the option's target.
	Options []LoaderTransition `json:"options" mapstructure:"options"`
}

type LoaderTransition struct {
	To     string `json:"to" mapstructure:"to"`
	ToFull string `json:"to_node_id" mapstructure:"to_node_id"`
	// Text is the label of the generated choice node for options.
	Text string `json:"text" mapstructure:"text"`
	// Condition is either an expression string or a {type, params} map.
	Condition any `json:"condition" mapstructure:"condition"`
}

func (t LoaderTransition) target() string {
	if t.To != "" {
		return t.To
	}
	return t.ToFull
}
