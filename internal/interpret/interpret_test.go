package interpret

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdklens/internal/lexicon"
	"sdklens/internal/llm"
	"sdklens/internal/registry"
)

// stubClient returns a canned completion, or an error, and records the
// prompts it saw.
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

func fixtures(t *testing.T) (*lexicon.Map, *registry.Registry) {
	t.Helper()
	reg, err := registry.New([]registry.Entry{
		{Token: "PadRead", Kind: registry.KindFunction},
		{Token: "PadInit", Kind: registry.KindFunction},
		{Token: "CdGetError", Kind: registry.KindFunction},
	})
	require.NoError(t, err)
	lex, err := lexicon.New([]lexicon.Entry{
		{Term: "controller", Tag: "device", Tokens: []registry.Token{"PadInit"}},
		{Term: "controller disconnected", Tag: "device-disconnect", Tokens: []registry.Token{"PadRead"}},
	})
	require.NoError(t, err)
	return lex, reg
}

func TestInterpret_LongestMatch(t *testing.T) {
	lex, reg := fixtures(t)
	in := New(lex, reg, nil, llm.Params{}, nil)

	res := in.Interpret(context.Background(), "controller disconnected")
	assert.Equal(t, []registry.Token{"PadRead"}, res.Matched)
	assert.False(t, res.UsedFallback)
}

func TestInterpret_NoFallbackWhenMatched(t *testing.T) {
	lex, reg := fixtures(t)
	client := &stubClient{completion: "CdGetError"}
	in := New(lex, reg, client, llm.Params{}, nil)

	res := in.Interpret(context.Background(), "the controller is warm")
	assert.Equal(t, []registry.Token{"PadInit"}, res.Matched)
	assert.Empty(t, client.prompts)
}

func TestInterpret_FallbackDiscardsHallucinations(t *testing.T) {
	lex, reg := fixtures(t)
	client := &stubClient{completion: "PadRead\nPadWarp\nCdGetError"}
	in := New(lex, reg, client, llm.Params{}, nil)

	res := in.Interpret(context.Background(), "a cup of coffee is about to spill")
	assert.True(t, res.UsedFallback)
	assert.Equal(t, []registry.Token{"CdGetError", "PadRead"}, res.Matched)
	assert.NotContains(t, res.Matched, registry.Token("PadWarp"))
}

func TestInterpret_FallbackPromptCarriesVocabularyAndEvent(t *testing.T) {
	lex, reg := fixtures(t)
	client := &stubClient{completion: ""}
	in := New(lex, reg, client, llm.Params{}, nil)

	in.Interpret(context.Background(), "a strange humming sound")
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "PadRead")
	assert.Contains(t, client.prompts[0], "PadInit")
	assert.Contains(t, client.prompts[0], "a strange humming sound")
}

func TestInterpret_FallbackErrorDegradesToEmpty(t *testing.T) {
	lex, reg := fixtures(t)
	client := &stubClient{err: errors.New("connection refused")}
	in := New(lex, reg, client, llm.Params{}, nil)

	res := in.Interpret(context.Background(), "a cup of coffee")
	assert.Empty(t, res.Matched)
	assert.Equal(t, []string{"coffee", "cup"}, res.Unmatched)
}

func TestInterpret_NilClientSkipsFallback(t *testing.T) {
	lex, reg := fixtures(t)
	in := New(lex, reg, nil, llm.Params{}, nil)

	res := in.Interpret(context.Background(), "a cup of coffee")
	assert.Empty(t, res.Matched)
	assert.False(t, res.UsedFallback)
}
