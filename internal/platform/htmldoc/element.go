package htmldoc

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/mj1618/user-routine/internal/platform"
)

// Tags whose nodes carry a value property.
var valueTags = map[string]bool{
	"button":   true,
	"data":     true,
	"input":    true,
	"option":   true,
	"output":   true,
	"param":    true,
	"select":   true,
	"textarea": true,
}

// Element is a node of a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

var _ platform.Element = (*Element)(nil)

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, name)
}

// OuterHTML renders the element and its subtree.
func (e *Element) OuterHTML() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var buf bytes.Buffer
	_ = html.Render(&buf, e.node)
	return buf.String()
}

func (e *Element) TagName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.ToUpper(e.node.Data), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return textContent(e.node), nil
}

func (e *Element) Value(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	v, ok := e.doc.value(e.node)
	return v, ok, nil
}

func (e *Element) SetValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.values[e.node] = value
	return nil
}

func (e *Element) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setText(e.node, text)
	return nil
}

func (e *Element) AppendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setText(e.node, textContent(e.node)+text)
	return nil
}

// Click runs the click handlers registered for the element and its
// ancestors. Handlers run without the document lock held.
func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.doc.mu.Lock()
	calls := e.doc.bubble(e.node)
	e.doc.mu.Unlock()
	for _, call := range calls {
		if err := call(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Element) Children(ctx context.Context) ([]platform.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.doc.mu.Lock()
	var nodes []*html.Node
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			nodes = append(nodes, c)
		}
	}
	e.doc.mu.Unlock()
	return e.doc.wrap(nodes), nil
}

func (e *Element) IsClickable(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.node.Type == html.ElementNode && e.node.Data != "script", nil
}

// value reads the value property. A value set on any element stays
// readable afterwards, like an expando property in a browser.
func (d *Document) value(n *html.Node) (string, bool) {
	if v, ok := d.values[n]; ok {
		return v, true
	}
	if n.Type != html.ElementNode || !valueTags[n.Data] {
		return "", false
	}
	switch n.Data {
	case "textarea", "output":
		return textContent(n), true
	case "option":
		if v, ok := attr(n, "value"); ok {
			return v, true
		}
		return strings.TrimSpace(textContent(n)), true
	case "select":
		var first *html.Node
		for _, opt := range descendants(n, "option") {
			if first == nil {
				first = opt
			}
			if _, selected := attr(opt, "selected"); selected {
				return d.value(opt)
			}
		}
		if first == nil {
			return "", true
		}
		return d.value(first)
	default:
		v, _ := attr(n, "value")
		return v, true
	}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func descendants(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.Data == tag {
			out = append(out, c)
		}
		out = append(out, descendants(c, tag)...)
	}
	return out
}
