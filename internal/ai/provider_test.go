package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestResolveModel(t *testing.T) {
	require.Equal(t, "gemini-2.5-flash", ResolveModel(""))
	require.Equal(t, "gemini-2.5-flash", ResolveModel("gemini-2.5-flash"))
	require.Equal(t, "gemini-2.5-pro", ResolveModel("gemini-2.5-pro"))
	require.Equal(t, "gemini-3-pro-preview", ResolveModel("gemini-3-pro"))
	require.Equal(t, "gemini-2.0-flash", ResolveModel("gpt-4o"))
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("", nil)
	require.Error(t, err)
	_, err = NewProvider("nope", map[string]string{})
	require.ErrorContains(t, err, "unsupported ai provider")
}

func TestNewProviderGeminiWithoutKey(t *testing.T) {
	p, err := NewProvider("Gemini", map[string]string{"api_key": " "})
	require.NoError(t, err)
	require.Equal(t, "gemini", p.Name())
	for _, err := range p.GenerateStream(t.Context(), DefaultModelID, &GenerationRequest{}) {
		require.ErrorIs(t, err, ErrUnavailable)
	}
}

func TestToGeminiContentsOrder(t *testing.T) {
	req := &GenerationRequest{
		History: []Content{
			{Role: RoleUser, Parts: []Part{TextPart("q1")}},
			{Role: RoleModel, Parts: []Part{TextPart("a1")}},
		},
		Current: []Part{FilePart("files/e", "application/pdf"), TextPart("q2")},
	}
	out := toGeminiContents(req)
	require.Len(t, out, 3)
	require.Equal(t, "model", out[1].Role)
	require.Equal(t, "user", out[2].Role)
	require.Equal(t, &genai.FileData{FileURI: "files/e", MIMEType: "application/pdf"}, out[2].Parts[0].FileData)
	require.Equal(t, "q2", out[2].Parts[1].Text)
}
