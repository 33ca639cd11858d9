package chrome

import (
	"context"

	"github.com/chromedp/cdproto/runtime"

	"github.com/mj1618/user-routine/internal/platform"
)

const (
	jsTagName   = `function() { return this.tagName || this.nodeName; }`
	jsText      = `function() { return this.textContent || ""; }`
	jsValue     = `function() { return typeof this.value === "string" ? {has: true, value: this.value} : {has: false, value: ""}; }`
	jsSetValue  = `function(v) { this.value = v; this.dispatchEvent(new InputEvent("input", {bubbles: true})); return true; }`
	jsSetText   = `function(t) { this.textContent = t; return true; }`
	jsAppend    = `function(t) { this.textContent += t; return true; }`
	jsClick     = `function() { this.click(); return true; }`
	jsChildren  = `function() { return Array.from(this.children); }`
	jsClickable = `function() { return typeof this.click === "function" && this.tagName !== "SCRIPT"; }`
)

type element struct {
	s  *Session
	id runtime.RemoteObjectID
}

type valueResult struct {
	Has   bool   `json:"has"`
	Value string `json:"value"`
}

func (e *element) call(ctx context.Context, fn string, res any, args ...any) error {
	return e.s.run(ctx, callOn(e.id, fn, res, args...))
}

func (e *element) TagName(ctx context.Context) (string, error) {
	var tag string
	err := e.call(ctx, jsTagName, &tag)
	return tag, err
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, jsText, &text)
	return text, err
}

func (e *element) Value(ctx context.Context) (string, bool, error) {
	var v valueResult
	if err := e.call(ctx, jsValue, &v); err != nil {
		return "", false, err
	}
	return v.Value, v.Has, nil
}

func (e *element) SetValue(ctx context.Context, value string) error {
	var ok bool
	return e.call(ctx, jsSetValue, &ok, value)
}

func (e *element) SetText(ctx context.Context, text string) error {
	var ok bool
	return e.call(ctx, jsSetText, &ok, text)
}

func (e *element) AppendText(ctx context.Context, text string) error {
	var ok bool
	return e.call(ctx, jsAppend, &ok, text)
}

func (e *element) Click(ctx context.Context) error {
	var ok bool
	return e.call(ctx, jsClick, &ok)
}

func (e *element) Children(ctx context.Context) ([]platform.Element, error) {
	var list *runtime.RemoteObject
	if err := e.call(ctx, jsChildren, &list); err != nil {
		return nil, err
	}
	return e.s.unpack(ctx, list)
}

func (e *element) IsClickable(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, jsClickable, &ok)
	return ok, err
}
