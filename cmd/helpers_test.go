package cmd

import (
	"reflect"
	"strings"
	"testing"

	"github.com/mj1618/user-routine/internal/config"
	"github.com/mj1618/user-routine/internal/routine"
)

func TestParseOptionFlags(t *testing.T) {
	got, err := parseOptionFlags([]string{
		"globalDelay=100",
		"continueOnFailure=true",
		"message=Checkout flow",
		"separator=,",
		"awaitSelector=#ready",
		"messageAttribution=",
		"prefix=|",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"globalDelay":        100,
		"continueOnFailure":  true,
		"message":            "Checkout flow",
		"separator":          ",",
		"awaitSelector":      "#ready",
		"messageAttribution": "",
		"prefix":             "|",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestParseOptionFlags_Invalid(t *testing.T) {
	for _, v := range []string{"globalDelay", "=1", " =1"} {
		if _, err := parseOptionFlags([]string{v}); err == nil {
			t.Errorf("%q: expected an error", v)
		}
	}
}

func TestRoutineKind(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"click #save\nexists #done", "text"},
		{"\n\n- click #save\n- exists #done", "list"},
		{"---\nactions:\n  - click #save", "document"},
		{"options:\n  globalDelay: 0\nactions: []", "document"},
		{"log - not a list", "text"},
		{"", "text"},
	}
	for _, tt := range tests {
		if got := routineKind(tt.text); got != tt.want {
			t.Errorf("routineKind(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func raws(actions []routine.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Raw()
	}
	return out
}

func TestLoadRoutine(t *testing.T) {
	actions, options, err := loadRoutine(strings.NewReader("click #save\n\n  exists #done # fragment\n"))
	if err != nil {
		t.Fatal(err)
	}
	if options != nil {
		t.Errorf("text routines carry no options, got %v", options)
	}
	if got := raws(actions); !reflect.DeepEqual(got, []string{"click #save", "", "exists #done # fragment"}) {
		t.Errorf("unexpected actions %q", got)
	}

	actions, _, err = loadRoutine(strings.NewReader("- click #save\n- \"nav #top\"\n-   exists #done # fragment\n- \n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := raws(actions); !reflect.DeepEqual(got, []string{"click #save", "nav #top", "exists #done # fragment", ""}) {
		t.Errorf("unexpected list actions %q", got)
	}

	actions, options, err = loadRoutine(strings.NewReader("options:\n  globalDelay: 0\nactions:\n  - log hi\n  - value #name Bob\n  - 'click #save'\n"))
	if err != nil {
		t.Fatal(err)
	}
	if options["globalDelay"] != 0 {
		t.Errorf("unexpected options %v", options)
	}
	if got := raws(actions); !reflect.DeepEqual(got, []string{"log hi", "value #name Bob", "click #save"}) {
		t.Errorf("unexpected document actions %q", got)
	}

	actions, _, err = loadRoutine(strings.NewReader("actions: [\"click #save\", log done]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := raws(actions); !reflect.DeepEqual(got, []string{"click #save", "log done"}) {
		t.Errorf("unexpected flow actions %q", got)
	}
}

func TestLoadRoutine_BadYAML(t *testing.T) {
	for _, text := range []string{
		"- [unclosed\n",
		"- click: #save\n",
		"actions:\n  click: #save\n",
	} {
		if _, _, err := loadRoutine(strings.NewReader(text)); err == nil {
			t.Errorf("%q: expected an error", text)
		}
	}
}

func TestTargetOptions(t *testing.T) {
	opts := targetOptions(config.BrowserConfig{URL: "https://example.com", Headless: true, Stealth: true})
	if opts.URL != "https://example.com" || !opts.Headless || !opts.Stealth {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.Target() != "https://example.com" {
		t.Errorf("target = %q", opts.Target())
	}
}
