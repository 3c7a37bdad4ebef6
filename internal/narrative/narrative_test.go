package narrative

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdklens/internal/llm"
	"sdklens/internal/passage"
	"sdklens/internal/registry"
)

type stubClient struct {
	completion string
	err        error
	prompts    []string
}

func (s *stubClient) Complete(_ context.Context, prompt string, _ llm.Params) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.completion, nil
}

var testSelected = []passage.Selected{
	{Token: "PadInit", Excerpt: passage.Excerpt{ID: "pad.init.p3", Text: "Call PadInit once before any pad access."}},
	{Token: "PadRead", Excerpt: passage.Excerpt{ID: "pad.read.p12", Text: "PadRead samples the controller each frame."}},
}

var testTokens = []registry.Token{"PadInit", "PadRead"}

func TestBuildPrompt_CarriesTokensAndPassages(t *testing.T) {
	prompt := BuildPrompt("controller disconnected", testTokens, testSelected)

	assert.Contains(t, prompt, "controller disconnected")
	assert.Contains(t, prompt, "- PadInit")
	assert.Contains(t, prompt, "- PadRead")
	assert.Contains(t, prompt, "[pad.init.p3] (PadInit) Call PadInit once before any pad access.")
	assert.Contains(t, prompt, "[pad.read.p12] (PadRead) PadRead samples the controller each frame.")
}

func TestGenerate_ParsesJSONOutput(t *testing.T) {
	client := &stubClient{completion: `{"narrative":"I call PadInit, then PadRead finds silence [pad.read.p12].","citationsUsed":["pad.read.p12"],"tokensUsed":["PadInit","PadRead"]}`}
	g := New(client, llm.Params{}, nil)

	out, err := g.Generate(context.Background(), "controller disconnected", testTokens, testSelected, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Text, "PadRead")
	assert.Equal(t, []string{"pad.read.p12"}, out.CitationsUsed)
	assert.Empty(t, out.LintIssues)
}

func TestGenerate_ToleratesJSONInProse(t *testing.T) {
	client := &stubClient{completion: "Sure! Here you go:\n{\"narrative\":\"I wait on PadRead [pad.read.p12].\",\"citationsUsed\":[\"pad.read.p12\"]}"}
	g := New(client, llm.Params{}, nil)

	out, err := g.Generate(context.Background(), "event", testTokens, testSelected, nil)
	require.NoError(t, err)
	assert.Equal(t, "I wait on PadRead [pad.read.p12].", out.Text)
}

func TestGenerate_DropsForeignCitations(t *testing.T) {
	client := &stubClient{completion: `{"narrative":"I wait [pad.read.p12].","citationsUsed":["pad.read.p12","gpu.reset.p47"]}`}
	g := New(client, llm.Params{}, nil)

	out, err := g.Generate(context.Background(), "event", testTokens, testSelected, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pad.read.p12"}, out.CitationsUsed)
}

func TestGenerate_TransportErrorSurfaces(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	g := New(client, llm.Params{}, nil)

	_, err := g.Generate(context.Background(), "event", testTokens, testSelected, nil)
	assert.Error(t, err)
}

func TestGenerate_EmptyCompletionSurfaces(t *testing.T) {
	client := &stubClient{completion: ""}
	g := New(client, llm.Params{}, nil)

	_, err := g.Generate(context.Background(), "event", testTokens, testSelected, nil)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestNoTokenFallback(t *testing.T) {
	out := NoTokenFallback()
	assert.True(t, out.Fallback)
	assert.NotEmpty(t, out.Text)
}

func TestLint_UnallowedToken(t *testing.T) {
	out := Output{Text: "I call GpuReset and wait [pad.read.p12].", CitationsUsed: []string{"pad.read.p12"}}
	issues := Lint(out, testTokens, []string{"pad.read.p12"}, nil)
	assert.Equal(t, []string{"unallowed token: GpuReset"}, issues)
}

func TestLint_BadCitationAndMissingCitations(t *testing.T) {
	out := Output{Text: "I wait.", CitationsUsed: []string{"gpu.reset.p47"}}
	issues := Lint(out, testTokens, []string{"pad.read.p12"}, nil)
	assert.Contains(t, issues, "bad citation id: gpu.reset.p47")

	out = Output{Text: "I wait."}
	issues = Lint(out, testTokens, []string{"pad.read.p12"}, nil)
	assert.Contains(t, issues, "no citations used")
}

func TestLint_BannedTermLeakage(t *testing.T) {
	out := Output{Text: "The coffee pools beside PadRead [pad.read.p12].", CitationsUsed: []string{"pad.read.p12"}}
	issues := Lint(out, testTokens, []string{"pad.read.p12"}, []string{"coffee", "spill"})
	assert.Equal(t, []string{"unrepresentable term present: coffee"}, issues)
}

func TestLint_CleanOutput(t *testing.T) {
	out := Output{Text: "I call PadInit, then PadRead answers with silence [pad.read.p12].", CitationsUsed: []string{"pad.read.p12"}}
	issues := Lint(out, testTokens, []string{"pad.read.p12"}, []string{"coffee"})
	assert.Empty(t, issues)
}
