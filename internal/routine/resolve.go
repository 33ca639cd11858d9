package routine

import (
	"context"
	"strings"

	"github.com/mj1618/user-routine/internal/platform"
)

// ResolveOne returns the first element matching selector, or nil.
func ResolveOne(ctx context.Context, doc platform.Document, selector string) (platform.Element, error) {
	els, err := doc.Query(ctx, selector)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

// ResolveAll returns every element matching selector in document order.
func ResolveAll(ctx context.Context, doc platform.Document, selector string) ([]platform.Element, error) {
	return doc.Query(ctx, selector)
}

// ResolveSpecific finds the most specific clickable node holding text.
//
// The first candidate, in document order, whose text content or value
// contains text (case-insensitively) is the starting point. Its clickable
// descendants are then searched depth first; every one that also contains
// the text replaces the result, so the last one visited wins. When no
// descendant qualifies the candidate itself is returned.
func ResolveSpecific(ctx context.Context, doc platform.Document, selector, text string) (platform.Element, error) {
	m, err := resolveSpecific(ctx, doc, selector, text)
	return m.el, err
}

// specificMatch is a resolved element and its position: the candidate
// index followed by child indexes down to the element.
type specificMatch struct {
	el   platform.Element
	path []int
}

func resolveSpecific(ctx context.Context, doc platform.Document, selector, text string) (specificMatch, error) {
	candidates, err := doc.Query(ctx, selector)
	if err != nil {
		return specificMatch{}, err
	}
	return mostSpecific(ctx, candidates, containsText(text), isClickable)
}

// predicate tests a single element.
type predicate func(ctx context.Context, el platform.Element) (bool, error)

func mostSpecific(ctx context.Context, candidates []platform.Element, match, eligible predicate) (specificMatch, error) {
	for i, c := range candidates {
		ok, err := match(ctx, c)
		if err != nil {
			return specificMatch{}, err
		}
		if !ok {
			continue
		}
		found := specificMatch{el: c, path: []int{i}}
		if err := walkSpecific(ctx, c, []int{i}, match, eligible, &found); err != nil {
			return specificMatch{}, err
		}
		return found, nil
	}
	return specificMatch{}, nil
}

// walkSpecific visits the eligible descendants of parent in pre-order and
// records every one that matches in found.
func walkSpecific(ctx context.Context, parent platform.Element, path []int, match, eligible predicate, found *specificMatch) error {
	children, err := parent.Children(ctx)
	if err != nil {
		return err
	}
	for i, child := range children {
		ok, err := eligible(ctx, child)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if ok, err = match(ctx, child); err != nil {
			return err
		} else if !ok {
			continue
		}
		childPath := append(append([]int(nil), path...), i)
		*found = specificMatch{el: child, path: childPath}
		if err := walkSpecific(ctx, child, childPath, match, eligible, found); err != nil {
			return err
		}
	}
	return nil
}

// firstContaining returns the first element matching selector whose text
// or value contains text.
func firstContaining(ctx context.Context, doc platform.Document, selector, text string) (platform.Element, error) {
	els, err := doc.Query(ctx, selector)
	if err != nil {
		return nil, err
	}
	match := containsText(text)
	for _, el := range els {
		ok, err := match(ctx, el)
		if err != nil {
			return nil, err
		}
		if ok {
			return el, nil
		}
	}
	return nil, nil
}

func containsText(text string) predicate {
	needle := strings.ToLower(text)
	return func(ctx context.Context, el platform.Element) (bool, error) {
		content, err := el.Text(ctx)
		if err != nil {
			return false, err
		}
		if strings.Contains(strings.ToLower(content), needle) {
			return true, nil
		}
		value, ok, err := el.Value(ctx)
		if err != nil {
			return false, err
		}
		return ok && strings.Contains(strings.ToLower(value), needle), nil
	}
}

func isClickable(ctx context.Context, el platform.Element) (bool, error) {
	return el.IsClickable(ctx)
}
