package genimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestFirstImageExtractsInlineData(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "here is your thumbnail"},
						{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}},
						{InlineData: &genai.Blob{MIMEType: "image/webp", Data: []byte("second")}},
					},
				},
			},
		},
	}

	result, err := firstImage(resp)
	require.NoError(t, err)
	assert.Equal(t, "image/png", result.MIMEType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, result.Data)
}

func TestFirstImageDefaultsMimeType(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{InlineData: &genai.Blob{Data: []byte("raw")}},
					},
				},
			},
		},
	}

	result, err := firstImage(resp)
	require.NoError(t, err)
	assert.Equal(t, "image/png", result.MIMEType)
}

func TestFirstImageNoImagePayload(t *testing.T) {
	cases := []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{nil}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "text only"}}}}}},
	}
	for _, resp := range cases {
		_, err := firstImage(resp)
		assert.ErrorIs(t, err, ErrNoImage)
	}
}
