package platform

import "context"

// Document is the live page a routine runs against.
type Document interface {
	// Query returns every element matching the CSS selector, in document order.
	Query(ctx context.Context, selector string) ([]Element, error)

	// Navigate moves the document to an in-page fragment such as "#settings".
	Navigate(ctx context.Context, fragment string) error
}

// Element is a handle to a single node of a Document.
type Element interface {
	TagName(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)

	// Value reports the node's value property. ok is false when the node
	// has no value property at all, as opposed to an empty value.
	Value(ctx context.Context) (value string, ok bool, err error)

	// SetValue assigns the value property and fires an input event.
	SetValue(ctx context.Context, value string) error
	SetText(ctx context.Context, text string) error
	AppendText(ctx context.Context, text string) error
	Click(ctx context.Context) error

	// Children returns the direct element children in document order.
	Children(ctx context.Context) ([]Element, error)

	// IsClickable reports whether the node accepts synthetic clicks.
	// Script elements never do.
	IsClickable(ctx context.Context) (bool, error)
}

// Releaser is implemented by documents whose element handles hold memory
// in the page. Release invalidates every handle handed out so far.
type Releaser interface {
	Release(ctx context.Context) error
}

// Release drops the element handles of doc when it is a Releaser.
func Release(ctx context.Context, doc Document) error {
	if r, ok := doc.(Releaser); ok {
		return r.Release(ctx)
	}
	return nil
}

// Screenshotter captures the visible page as PNG bytes.
type Screenshotter interface {
	CaptureScreenshot(ctx context.Context) ([]byte, error)
}
