package model

import (
	"crypto/sha256"
	"fmt"
)

// Change is a mutated element matched across two snapshots.
type Change struct {
	ID      int                  `yaml:"i"       json:"i"`
	Tag     string               `yaml:"tag"     json:"tag"`
	Path    string               `yaml:"p"       json:"p"`
	Changes map[string][2]string `yaml:"changes" json:"changes"`
}

// TreeDiff is the result of comparing two snapshots.
type TreeDiff struct {
	Added          []FlatElement `yaml:"added,omitempty"   json:"added,omitempty"`
	Removed        []FlatElement `yaml:"removed,omitempty" json:"removed,omitempty"`
	Changed        []Change      `yaml:"changed,omitempty" json:"changed,omitempty"`
	UnchangedCount int           `yaml:"unchanged_count"   json:"unchanged_count"`
}

// Empty reports whether the snapshots were identical.
func (d TreeDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// ElementHash identifies an element by tag and position so it can be
// matched across snapshots whose IDs have shifted. Text and value are
// excluded because they are what routines change.
func ElementHash(el FlatElement) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s", el.Tag, el.Path)
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// DiffElements compares two flat snapshots by ElementHash.
func DiffElements(prev, curr []FlatElement) TreeDiff {
	prevByHash := make(map[string]FlatElement, len(prev))
	for _, el := range prev {
		prevByHash[ElementHash(el)] = el
	}
	currByHash := make(map[string]struct{}, len(curr))

	var diff TreeDiff
	for _, el := range curr {
		h := ElementHash(el)
		currByHash[h] = struct{}{}
		prevEl, existed := prevByHash[h]
		if !existed {
			diff.Added = append(diff.Added, el)
			continue
		}
		if changes := diffProperties(prevEl, el); changes != nil {
			diff.Changed = append(diff.Changed, Change{ID: el.ID, Tag: el.Tag, Path: el.Path, Changes: changes})
		} else {
			diff.UnchangedCount++
		}
	}

	for _, el := range prev {
		if _, ok := currByHash[ElementHash(el)]; !ok {
			diff.Removed = append(diff.Removed, el)
		}
	}
	return diff
}

func diffProperties(prev, curr FlatElement) map[string][2]string {
	diffs := make(map[string][2]string)
	if prev.Text != curr.Text {
		diffs["t"] = [2]string{prev.Text, curr.Text}
	}
	if pv, cv := deref(prev.Value), deref(curr.Value); pv != cv {
		diffs["v"] = [2]string{pv, cv}
	}
	if len(diffs) == 0 {
		return nil
	}
	return diffs
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
