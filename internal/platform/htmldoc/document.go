// Package htmldoc implements platform.Document over a static HTML tree held
// in memory. It backs the html driver and the routine tests.
package htmldoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/mj1618/user-routine/internal/platform"
)

// ClickHandler reacts to a click that reached an element matching the
// handler's selector, either directly or by bubbling up from a descendant.
type ClickHandler func(ctx context.Context, doc *Document, el *Element) error

type clickHandler struct {
	sel cascadia.Selector
	fn  ClickHandler
}

// Document is an HTML tree guarded by a single mutex. Value properties are
// kept apart from the value attribute, like a browser does.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	values   map[*html.Node]string
	location string
	handlers []clickHandler
}

var _ platform.Document = (*Document)(nil)

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root, values: map[*html.Node]string{}}, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// OnClick registers fn for clicks on elements matching selector.
func (d *Document) OnClick(selector string, fn ClickHandler) error {
	sel, err := compile(selector)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.handlers = append(d.handlers, clickHandler{sel: sel, fn: fn})
	d.mu.Unlock()
	return nil
}

// Query returns the elements matching selector in document order.
func (d *Document) Query(ctx context.Context, selector string) ([]platform.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	nodes := sel.MatchAll(d.root)
	d.mu.Unlock()
	return d.wrap(nodes), nil
}

// Navigate records the fragment as the document location.
func (d *Document) Navigate(ctx context.Context, fragment string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.location = fragment
	d.mu.Unlock()
	return nil
}

// Location returns the fragment of the last navigation.
func (d *Document) Location() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location
}

// AppendHTML parses fragment and appends it to the first element matching selector.
func (d *Document) AppendHTML(selector, fragment string) error {
	sel, err := compile(selector)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	parent := sel.MatchFirst(d.root)
	if parent == nil {
		return fmt.Errorf("append html: no element matches %q", selector)
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return fmt.Errorf("append html: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}

// Remove detaches every element matching selector and reports how many were removed.
func (d *Document) Remove(selector string) (int, error) {
	sel, err := compile(selector)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes := sel.MatchAll(d.root)
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return len(nodes), nil
}

// HTML renders the current tree.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func (d *Document) wrap(nodes []*html.Node) []platform.Element {
	out := make([]platform.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Element{doc: d, node: n})
	}
	return out
}

// bubble collects the handlers for a click on n, innermost element first.
func (d *Document) bubble(n *html.Node) []func(ctx context.Context) error {
	var calls []func(ctx context.Context) error
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		target := &Element{doc: d, node: cur}
		for _, h := range d.handlers {
			if !h.sel.Match(cur) {
				continue
			}
			fn := h.fn
			calls = append(calls, func(ctx context.Context) error { return fn(ctx, d, target) })
		}
	}
	return calls
}

func compile(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel, nil
}
