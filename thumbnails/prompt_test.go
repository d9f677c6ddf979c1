package thumbnails

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptMinimalist(t *testing.T) {
	prompt, err := BuildPrompt(PromptParams{
		Title:       "Go in 100 seconds",
		Style:       "Minimalist",
		AspectRatio: "1:1",
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "minimalist thumbnail, clean layout")
	assert.Contains(t, prompt, `"Go in 100 seconds"`)
	assert.Contains(t, prompt, "The thumbnail should be 1:1")
	assert.NotContains(t, prompt, "color scheme")
	assert.NotContains(t, prompt, "reference image")
}

func TestBuildPromptAllClauses(t *testing.T) {
	prompt, err := BuildPrompt(PromptParams{
		Title:         "My setup tour",
		Style:         "Tech/Futuristic",
		AspectRatio:   "9:16",
		ColorScheme:   "neon",
		UserPrompt:    "show a mechanical keyboard",
		ReferenceHint: "img1=person",
		HasReferences: true,
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "futuristic thumbnail")
	assert.Contains(t, prompt, "Use a neon glow effects")
	assert.Contains(t, prompt, "Additional details: show a mechanical keyboard.")
	assert.Contains(t, prompt, "Use the provided reference image(s) as constraints")
	assert.Contains(t, prompt, "Reference hint: img1=person.")
	assert.Contains(t, prompt, "The thumbnail should be 9:16")
}

func TestBuildPromptDefaultsAspectRatio(t *testing.T) {
	prompt, err := BuildPrompt(PromptParams{
		Title: "Untitled",
		Style: "Illustrated",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "The thumbnail should be 16:9")
}

func TestBuildPromptUnknownStyle(t *testing.T) {
	_, err := BuildPrompt(PromptParams{Title: "x", Style: "Vaporwave"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown style")
}

func TestBuildPromptUnknownColorScheme(t *testing.T) {
	_, err := BuildPrompt(PromptParams{
		Title:       "x",
		Style:       "Minimalist",
		ColorScheme: "plaid",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown color scheme")
}

func TestEnumValidators(t *testing.T) {
	for _, style := range []string{"Bold & Graphic", "Tech/Futuristic", "Minimalist", "Photorealistic", "Illustrated"} {
		assert.True(t, ValidStyle(style), style)
	}
	assert.False(t, ValidStyle("bold & graphic"))

	for _, scheme := range []string{"vibrant", "sunset", "forest", "neon", "purple", "monochrome", "ocean", "pastel"} {
		assert.True(t, ValidColorScheme(scheme), scheme)
	}
	assert.False(t, ValidColorScheme("Vibrant"))

	assert.True(t, ValidAspectRatio("16:9"))
	assert.True(t, ValidAspectRatio("1:1"))
	assert.True(t, ValidAspectRatio("9:16"))
	assert.False(t, ValidAspectRatio("4:3"))
}
