package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/user-routine/internal/output"
	"github.com/mj1618/user-routine/internal/platform"
	"github.com/mj1618/user-routine/internal/platform/htmldoc"
)

const page = `<html><body>
<input id="name">
<ul><li>one</li><li><a href="#two">two</a></li></ul>
</body></html>`

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	doc, err := htmldoc.ParseString(page)
	require.NoError(t, err)
	if opts.ResultTTL == 0 {
		opts.ResultTTL = time.Minute
	}
	opts.Defaults = map[string]any{"globaldelay": 0, "awaittimeout": 200, "awaitinterval": 10}
	s := New(&platform.Provider{Driver: "html", Target: "test-page", Document: doc}, opts)
	t.Cleanup(s.Close)
	return s
}

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return tc.Text, res.IsError
}

func decodeRun(t *testing.T, text string) output.RunResult {
	t.Helper()
	var res output.RunResult
	require.NoError(t, yaml.Unmarshal([]byte(text), &res))
	return res
}

func TestRunRoutineWaits(t *testing.T) {
	s := newTestServer(t, Options{})
	text, isErr := call(t, s.handleRun, map[string]any{
		"actions": []any{"fill #name Bob", "value #name Bob"},
	})
	require.False(t, isErr, text)

	res := decodeRun(t, text)
	assert.True(t, res.Success)
	assert.Len(t, res.Log, 3)
	assert.Equal(t, "test-page", res.Target)
	assert.NotEmpty(t, res.RunID)

	st, ok := s.Runs().Status(res.RunID)
	require.True(t, ok)
	assert.Equal(t, "done", st.Phase)
	require.NotNil(t, st.Result)
}

func TestRunRoutineFailureIsError(t *testing.T) {
	s := newTestServer(t, Options{})
	text, isErr := call(t, s.handleRun, map[string]any{
		"actions": "exists #name\nexists #missing",
	})
	assert.True(t, isErr)
	res := decodeRun(t, text)
	assert.False(t, res.Success)
	assert.Contains(t, res.Log, "FAIL: Did not exist: '#missing'. Halting execution.")
}

func TestRunRoutineOptions(t *testing.T) {
	s := newTestServer(t, Options{})
	text, isErr := call(t, s.handleRun, map[string]any{
		"actions": []any{"exists,#missing", "fill,#name,Ann"},
		"options": map[string]any{"continueOnFailure": true, "separator": ","},
	})
	assert.True(t, isErr)
	res := decodeRun(t, text)
	assert.Equal(t, []string{
		"FAIL: Did not exist: '#missing'. Continuing execution.",
		"Filled the value of #name to 'Ann'",
		"Done, success: false",
	}, res.Log)

	_, isErr = call(t, s.handleRun, map[string]any{"actions": []any{"log x"}, "options": "fast"})
	assert.True(t, isErr)
	_, isErr = call(t, s.handleRun, map[string]any{"actions": []any{1}})
	assert.True(t, isErr)
}

func TestRunRoutineAsyncStop(t *testing.T) {
	s := newTestServer(t, Options{})
	text, isErr := call(t, s.handleRun, map[string]any{
		"actions": []any{"wait 10000", "log never"},
		"wait":    false,
	})
	require.False(t, isErr, text)

	var st RunStatus
	require.NoError(t, yaml.Unmarshal([]byte(text), &st))
	require.NotEmpty(t, st.RunID)
	assert.Nil(t, st.Result)

	text, isErr = call(t, s.handleControl, map[string]any{"run_id": st.RunID, "action": "stop", "reason": "test"})
	require.False(t, isErr, text)

	require.Eventually(t, func() bool {
		got, ok := s.Runs().Status(st.RunID)
		return ok && got.Result != nil
	}, 2*time.Second, 10*time.Millisecond)

	got, _ := s.Runs().Status(st.RunID)
	assert.False(t, got.Result.Success)
	assert.Contains(t, got.Result.Log, "FAIL: Stopped by external request (test). Halting execution.")

	_, isErr = call(t, s.handleControl, map[string]any{"run_id": st.RunID, "action": "pause"})
	assert.True(t, isErr, "finished runs cannot be controlled")
}

func TestRunRoutineTutorialAdvance(t *testing.T) {
	s := newTestServer(t, Options{})
	text, _ := call(t, s.handleRun, map[string]any{
		"actions": []any{"log first", "log second"},
		"options": map[string]any{"tutorialMode": true},
		"wait":    false,
	})
	var st RunStatus
	require.NoError(t, yaml.Unmarshal([]byte(text), &st))

	require.Eventually(t, func() bool {
		call(t, s.handleControl, map[string]any{"run_id": st.RunID, "action": "advance"})
		got, _ := s.Runs().Status(st.RunID)
		return got.Result != nil
	}, 2*time.Second, 20*time.Millisecond)

	got, _ := s.Runs().Status(st.RunID)
	assert.True(t, got.Result.Success)
	assert.Equal(t, []string{"first", "second", "Done, success: true"}, got.Result.Log)
}

func TestControlUnknown(t *testing.T) {
	s := newTestServer(t, Options{})
	text, isErr := call(t, s.handleControl, map[string]any{"run_id": "nope", "action": "stop"})
	assert.True(t, isErr)
	assert.Contains(t, text, "not active")
}

func TestStatusList(t *testing.T) {
	s := newTestServer(t, Options{})
	call(t, s.handleRun, map[string]any{"actions": []any{"log a"}})
	call(t, s.handleRun, map[string]any{"actions": []any{"log b"}})

	text, isErr := call(t, s.handleStatus, map[string]any{})
	require.False(t, isErr)
	var list []RunStatus
	require.NoError(t, yaml.Unmarshal([]byte(text), &list))
	assert.Len(t, list, 2)

	_, isErr = call(t, s.handleStatus, map[string]any{"run_id": "missing"})
	assert.True(t, isErr)
}

func TestParseActionsTool(t *testing.T) {
	s := newTestServer(t, Options{})
	text, isErr := call(t, s.handleParse, map[string]any{
		"actions": []any{"fill #a hello world", "bogus", "!click x", ""},
	})
	require.False(t, isErr)

	var parsed []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(text), &parsed))
	require.Len(t, parsed, 4)

	cmd := parsed[0]["command"].(map[string]any)
	assert.Equal(t, "fill", cmd["kind"])
	assert.Equal(t, "#a", cmd["selector"])
	assert.Equal(t, "hello world", cmd["text"])
	assert.Contains(t, parsed[1]["error"], "keyword not recognized")
	assert.Contains(t, parsed[2]["error"], "Negation")
	assert.Equal(t, "noop", parsed[3]["command"].(map[string]any)["kind"])
}

func TestInspectTool(t *testing.T) {
	s := newTestServer(t, Options{})
	text, isErr := call(t, s.handleInspect, map[string]any{"selector": "ul >> li", "text": "two", "flat": true})
	require.False(t, isErr, text)

	var res output.InspectFlatResult
	require.NoError(t, yaml.Unmarshal([]byte(text), &res))
	assert.Equal(t, "ul >> li", res.Selector)

	var specific []string
	for _, el := range res.Elements {
		if el.Specific {
			specific = append(specific, el.Tag)
		}
	}
	assert.Equal(t, []string{"a"}, specific)

	text, isErr = call(t, s.handleInspect, map[string]any{"selector": "li", "text": "one", "matches": true})
	require.False(t, isErr)
	assert.Contains(t, text, "t: one")
	assert.False(t, strings.Contains(text, "t: two"))

	_, isErr = call(t, s.handleInspect, map[string]any{})
	assert.True(t, isErr)
	_, isErr = call(t, s.handleInspect, map[string]any{"selector": "[["})
	assert.True(t, isErr)
}
