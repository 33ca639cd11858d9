package model

import "strconv"

// FlatElement is an element with a path breadcrumb instead of children.
type FlatElement struct {
	ID        int     `yaml:"i"                   json:"i"`
	Tag       string  `yaml:"tag"                 json:"tag"`
	Text      string  `yaml:"t,omitempty"         json:"t,omitempty"`
	Value     *string `yaml:"v,omitempty"         json:"v,omitempty"`
	Clickable bool    `yaml:"clickable,omitempty" json:"clickable,omitempty"`
	Match     bool    `yaml:"match,omitempty"     json:"match,omitempty"`
	Specific  bool    `yaml:"specific,omitempty"  json:"specific,omitempty"`
	Path      string  `yaml:"p"                   json:"p"`
}

// FlattenElements converts a tree of elements into a flat list. Each
// element's path lists the tags from the root, each with its index among
// its siblings, joined with " > ", e.g. "div[0] > ul[1] > li[3]".
func FlattenElements(elements []Element) []FlatElement {
	var result []FlatElement
	for i, el := range elements {
		flattenRecursive(el, i, "", &result)
	}
	return result
}

func flattenRecursive(el Element, index int, parentPath string, result *[]FlatElement) {
	currentPath := el.Tag + "[" + strconv.Itoa(index) + "]"
	if parentPath != "" {
		currentPath = parentPath + " > " + currentPath
	}

	*result = append(*result, FlatElement{
		ID:        el.ID,
		Tag:       el.Tag,
		Text:      el.Text,
		Value:     el.Value,
		Clickable: el.Clickable,
		Match:     el.Match,
		Specific:  el.Specific,
		Path:      currentPath,
	})

	for i, child := range el.Children {
		flattenRecursive(child, i, currentPath, result)
	}
}
