package model

import "unicode/utf8"

// MaxTextLen bounds the text kept per element in a snapshot.
const MaxTextLen = 80

// Element is a snapshot of a document node.
type Element struct {
	ID        int       `yaml:"i"                   json:"i"`                   // Pre-order index, from 1
	Tag       string    `yaml:"tag"                 json:"tag"`                 // Lowercase tag name
	Text      string    `yaml:"t,omitempty"         json:"t,omitempty"`         // Text content, truncated
	Value     *string   `yaml:"v,omitempty"         json:"v,omitempty"`         // nil = no value property
	Clickable bool      `yaml:"clickable,omitempty" json:"clickable,omitempty"` // Accepts synthetic clicks
	Match     bool      `yaml:"match,omitempty"     json:"match,omitempty"`     // Contains the text filter
	Specific  bool      `yaml:"specific,omitempty"  json:"specific,omitempty"`  // The node a click with text lands on
	Children  []Element `yaml:"c,omitempty"         json:"c,omitempty"`
}

// TruncateText shortens s to MaxTextLen runes, marking the cut with "...".
func TruncateText(s string) string {
	if utf8.RuneCountInString(s) <= MaxTextLen {
		return s
	}
	r := []rune(s)
	return string(r[:MaxTextLen-3]) + "..."
}
