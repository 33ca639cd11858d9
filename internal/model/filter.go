package model

// FilterMatches keeps elements that matched the text filter, together with
// their ancestors so the tree still shows where each match lives.
func FilterMatches(elements []Element) []Element {
	var result []Element
	for _, el := range elements {
		childMatches := FilterMatches(el.Children)
		if el.Match || el.Specific || len(childMatches) > 0 {
			filtered := el
			filtered.Children = childMatches
			result = append(result, filtered)
		}
	}
	return result
}

// FindSpecific returns the element flagged as the specific match, or nil.
func FindSpecific(elements []Element) *Element {
	for i := range elements {
		if elements[i].Specific {
			return &elements[i]
		}
		if found := FindSpecific(elements[i].Children); found != nil {
			return found
		}
	}
	return nil
}

// PruneUnclickable removes script-like nodes that can never be click
// targets, promoting their children.
func PruneUnclickable(elements []Element) []Element {
	var result []Element
	for _, el := range elements {
		pruned := PruneUnclickable(el.Children)
		if !el.Clickable {
			result = append(result, pruned...)
			continue
		}
		kept := el
		kept.Children = pruned
		result = append(result, kept)
	}
	return result
}
