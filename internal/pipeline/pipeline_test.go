package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdklens/internal/lexicon"
	"sdklens/internal/llm"
	"sdklens/internal/passage"
	"sdklens/internal/registry"
	"sdklens/internal/relation"
)

type stubClient struct {
	completion string
	prompts    []string
}

func (s *stubClient) Complete(_ context.Context, prompt string, _ llm.Params) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.completion, nil
}

type downClient struct {
	calls int
}

func (d *downClient) Complete(context.Context, string, llm.Params) (string, error) {
	d.calls++
	return "", errors.New("connection refused")
}

func testSnapshots(t *testing.T) *Snapshots {
	t.Helper()
	reg, err := registry.New([]registry.Entry{
		{Token: "PadRead", Kind: registry.KindFunction},
		{Token: "PadInit", Kind: registry.KindFunction},
	})
	require.NoError(t, err)

	graph, err := relation.New(reg, []relation.Edge{
		{Dependent: "PadRead", Prerequisite: "PadInit"},
	})
	require.NoError(t, err)

	lex, err := lexicon.New([]lexicon.Entry{
		{Term: "controller disconnected", Tag: "device-disconnect", Tokens: []registry.Token{"PadRead"}},
		{Term: "controller", Tag: "device", Tokens: []registry.Token{"PadInit"}},
	})
	require.NoError(t, err)

	store, err := passage.New([]passage.Passage{
		{Token: "PadRead", Excerpts: []passage.Excerpt{
			{ID: "pad.read.p12", Text: "PadRead samples the controller each frame."},
		}},
		{Token: "PadInit", Excerpts: []passage.Excerpt{
			{ID: "pad.init.p3", Text: "Call PadInit once before any pad access."},
		}},
	})
	require.NoError(t, err)

	return &Snapshots{Registry: reg, Graph: graph, Lexicon: lex, Passages: store}
}

func TestRun_ControllerDisconnectedEndToEnd(t *testing.T) {
	snaps := testSnapshots(t)
	client := &stubClient{completion: `{"narrative":"PadInit ran long ago; now PadRead returns nothing [pad.read.p12][pad.init.p3].","citationsUsed":["pad.read.p12","pad.init.p3"],"tokensUsed":["PadRead","PadInit"]}`}
	p := New(snaps, client, llm.Params{}, 0, nil)

	res, err := p.Run(context.Background(), "controller disconnected")
	require.NoError(t, err)

	assert.Equal(t, []registry.Token{"PadRead"}, res.Interpretation.Matched)
	assert.Equal(t, []registry.Token{"PadInit", "PadRead"}, res.Expanded)
	require.Len(t, res.Selected, 2)

	// The generation prompt must reference both tokens and both excerpts.
	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "- PadRead")
	assert.Contains(t, prompt, "- PadInit")
	assert.Contains(t, prompt, "PadRead samples the controller each frame.")
	assert.Contains(t, prompt, "Call PadInit once before any pad access.")

	assert.Contains(t, res.Narrative.Text, "PadRead")
	assert.ElementsMatch(t, []string{"pad.read.p12", "pad.init.p3"}, res.Narrative.CitationsUsed)
	assert.Empty(t, res.Narrative.LintIssues)
}

func TestAnalyze_WorksWithCompletionServiceDown(t *testing.T) {
	snaps := testSnapshots(t)
	client := &downClient{}
	p := New(snaps, client, llm.Params{}, 0, nil)

	res, err := p.Analyze(context.Background(), "controller disconnected")
	require.NoError(t, err)

	assert.Equal(t, []registry.Token{"PadRead"}, res.Interpretation.Matched)
	assert.Equal(t, []registry.Token{"PadInit", "PadRead"}, res.Expanded)
	require.Len(t, res.Selected, 2)
	// The lexicon claimed the event, so not even the interpreter
	// fallback touched the service.
	assert.Zero(t, client.calls)
}

func TestRun_NoTokensYieldsFallbackWithoutLLMCall(t *testing.T) {
	snaps := testSnapshots(t)
	client := &stubClient{completion: ""}
	p := New(snaps, client, llm.Params{}, 0, nil)

	res, err := p.Run(context.Background(), "a cup of coffee is about to spill")
	require.NoError(t, err)

	assert.Empty(t, res.Interpretation.Matched)
	assert.True(t, res.Narrative.Fallback)
	assert.NotEmpty(t, res.Narrative.Text)
	// One fallback interpretation call, no narrative call.
	assert.Len(t, client.prompts, 1)
}

func TestRun_BackboneExcerptAdmittedForPrerequisite(t *testing.T) {
	snaps := testSnapshots(t)
	store, err := passage.New([]passage.Passage{
		{Token: "PadRead", Excerpts: []passage.Excerpt{
			{ID: "pad.read.p12", Text: "PadRead samples the controller each frame."},
		}},
		{Token: "PadInit", Excerpts: []passage.Excerpt{
			{ID: "pad.init.p3", Text: "Call PadInit once before any pad access.", Backbone: true},
		}},
	})
	require.NoError(t, err)
	snaps.Passages = store

	client := &stubClient{completion: `{"narrative":"I wait [pad.read.p12].","citationsUsed":["pad.read.p12"]}`}
	p := New(snaps, client, llm.Params{}, 0, nil)

	res, err := p.Run(context.Background(), "controller disconnected")
	require.NoError(t, err)

	require.Len(t, res.Selected, 2)
	assert.Equal(t, "pad.read.p12", res.Selected[0].Excerpt.ID)
	assert.Equal(t, "pad.init.p3", res.Selected[1].Excerpt.ID)
}
