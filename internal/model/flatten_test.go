package model

import "testing"

func TestFlattenElements_Basic(t *testing.T) {
	elements := []Element{
		{ID: 1, Tag: "button", Text: "OK"},
		{ID: 2, Tag: "p", Text: "Hello"},
	}
	result := FlattenElements(elements)
	if len(result) != 2 {
		t.Fatalf("expected 2 flat elements, got %d", len(result))
	}
	if result[0].Path != "button[0]" {
		t.Errorf("expected path 'button[0]', got %q", result[0].Path)
	}
	if result[1].Path != "p[1]" {
		t.Errorf("expected path 'p[1]', got %q", result[1].Path)
	}
}

func TestFlattenElements_NestedPath(t *testing.T) {
	elements := []Element{
		{
			ID: 1, Tag: "nav",
			Children: []Element{
				{ID: 2, Tag: "a", Text: "Home"},
				{
					ID: 3, Tag: "ul",
					Children: []Element{
						{ID: 4, Tag: "li", Text: "Back"},
					},
				},
			},
		},
	}
	result := FlattenElements(elements)
	if len(result) != 4 {
		t.Fatalf("expected 4 flat elements, got %d", len(result))
	}
	want := []string{"nav[0]", "nav[0] > a[0]", "nav[0] > ul[1]", "nav[0] > ul[1] > li[0]"}
	for i, w := range want {
		if result[i].Path != w {
			t.Errorf("element %d: expected path %q, got %q", i, w, result[i].Path)
		}
	}
}

func TestFlattenElements_PreservesFlags(t *testing.T) {
	v := "abc"
	elements := []Element{
		{ID: 7, Tag: "input", Value: &v, Clickable: true, Match: true, Specific: true},
	}
	result := FlattenElements(elements)
	if len(result) != 1 {
		t.Fatalf("expected 1 flat element, got %d", len(result))
	}
	el := result[0]
	if el.ID != 7 || !el.Clickable || !el.Match || !el.Specific {
		t.Errorf("flags not preserved: %+v", el)
	}
	if el.Value == nil || *el.Value != "abc" {
		t.Errorf("expected value 'abc', got %v", el.Value)
	}
}

func TestFlattenElements_Empty(t *testing.T) {
	if result := FlattenElements(nil); len(result) != 0 {
		t.Errorf("expected empty result, got %d", len(result))
	}
}

func TestTruncateText(t *testing.T) {
	short := "hello"
	if got := TruncateText(short); got != short {
		t.Errorf("expected %q unchanged, got %q", short, got)
	}
	long := ""
	for i := 0; i < 100; i++ {
		long += "é"
	}
	got := TruncateText(long)
	if n := len([]rune(got)); n != MaxTextLen {
		t.Errorf("expected %d runes, got %d", MaxTextLen, n)
	}
}
