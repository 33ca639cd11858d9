package rodpage

import (
	"context"

	"github.com/go-rod/rod"

	"github.com/mj1618/user-routine/internal/platform"
)

type element struct {
	el *rod.Element
}

func (e *element) TagName(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.tagName || this.nodeName`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.textContent || ""`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *element) Value(ctx context.Context) (string, bool, error) {
	res, err := e.el.Context(ctx).Eval(`() => typeof this.value === "string" ? {has: true, value: this.value} : {has: false, value: ""}`)
	if err != nil {
		return "", false, err
	}
	return res.Value.Get("value").Str(), res.Value.Get("has").Bool(), nil
}

func (e *element) SetValue(ctx context.Context, value string) error {
	_, err := e.el.Context(ctx).Eval(`(v) => {
		this.value = v;
		this.dispatchEvent(new InputEvent("input", {bubbles: true}));
	}`, value)
	return err
}

func (e *element) SetText(ctx context.Context, text string) error {
	_, err := e.el.Context(ctx).Eval(`(t) => { this.textContent = t; }`, text)
	return err
}

func (e *element) AppendText(ctx context.Context, text string) error {
	_, err := e.el.Context(ctx).Eval(`(t) => { this.textContent += t; }`, text)
	return err
}

// Click dispatches a synthetic click, like HTMLElement.click, rather than
// moving the mouse, so hidden and covered elements can be clicked too.
func (e *element) Click(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => this.click()`)
	return err
}

func (e *element) Children(ctx context.Context) ([]platform.Element, error) {
	els, err := e.el.Context(ctx).ElementsByJS(rod.Eval(`() => Array.from(this.children)`))
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

func (e *element) IsClickable(ctx context.Context) (bool, error) {
	res, err := e.el.Context(ctx).Eval(`() => typeof this.click === "function" && this.tagName !== "SCRIPT"`)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}
