package routine

import (
	"context"
	"slices"
	"strings"

	"github.com/mj1618/user-routine/internal/model"
	"github.com/mj1618/user-routine/internal/platform"
)

// Inspect snapshots the elements matching selector, depth levels deep
// (0 = unlimited). With a text filter, nodes containing the text are
// flagged Match and the node a "click selector text" action would land on
// is flagged Specific.
//
// The result holds no element handles; the ones used to build it are
// released before Inspect returns.
func Inspect(ctx context.Context, doc platform.Document, selector, text string, depth int) ([]model.Element, error) {
	defer func() { _ = platform.Release(context.WithoutCancel(ctx), doc) }()

	candidates, err := doc.Query(ctx, normalizeSelector(selector))
	if err != nil {
		return nil, err
	}
	var (
		match    predicate
		specific []int
	)
	if text != "" {
		match = containsText(text)
		m, err := mostSpecific(ctx, candidates, match, isClickable)
		if err != nil {
			return nil, err
		}
		if m.el != nil {
			specific = m.path
		}
	}

	s := snapshotter{match: match, specific: specific, depth: depth}
	out := make([]model.Element, 0, len(candidates))
	for i, c := range candidates {
		el, err := s.snapshot(ctx, c, []int{i}, 1)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

type snapshotter struct {
	match    predicate
	specific []int
	depth    int
	nextID   int
}

func (s *snapshotter) snapshot(ctx context.Context, el platform.Element, path []int, level int) (model.Element, error) {
	s.nextID++
	out := model.Element{ID: s.nextID}

	tag, err := el.TagName(ctx)
	if err != nil {
		return out, err
	}
	out.Tag = strings.ToLower(tag)
	text, err := el.Text(ctx)
	if err != nil {
		return out, err
	}
	out.Text = model.TruncateText(strings.Join(strings.Fields(text), " "))
	if v, ok, err := el.Value(ctx); err != nil {
		return out, err
	} else if ok {
		out.Value = &v
	}
	if out.Clickable, err = el.IsClickable(ctx); err != nil {
		return out, err
	}
	if s.match != nil {
		if out.Match, err = s.match(ctx, el); err != nil {
			return out, err
		}
	}
	out.Specific = s.specific != nil && slices.Equal(path, s.specific)

	if s.depth > 0 && level >= s.depth {
		return out, nil
	}
	children, err := el.Children(ctx)
	if err != nil {
		return out, err
	}
	for i, c := range children {
		child, err := s.snapshot(ctx, c, append(slices.Clone(path), i), level+1)
		if err != nil {
			return out, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

// Snapshot flattens the subtree under selector for before/after diffs.
func Snapshot(ctx context.Context, doc platform.Document, selector string) ([]model.FlatElement, error) {
	tree, err := Inspect(ctx, doc, selector, "", 0)
	if err != nil {
		return nil, err
	}
	return model.FlattenElements(tree), nil
}
