package genimage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultModelID = "gemini-3-pro-image-preview"
	defaultTimeout = 120 * time.Second
)

var (
	// ErrNoImage indicates the model response contained no image payload.
	ErrNoImage = errors.New("genimage: no image returned from model")
	// ErrTimeout indicates the generation call exceeded its deadline.
	ErrTimeout = errors.New("genimage: generation timed out")
)

// ReferenceImage is an inline image constraint passed alongside the prompt.
type ReferenceImage struct {
	MIMEType string
	Data     []byte
}

// Request describes a single image generation call.
type Request struct {
	Prompt      string
	AspectRatio string
	References  []ReferenceImage
}

// Result carries the first image payload from the model response.
type Result struct {
	Data     []byte
	MIMEType string
}

// Generator produces image bytes from text and optional reference images.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Client calls the Gemini API for multimodal image generation.
type Client struct {
	ai      *genai.Client
	modelID string
	timeout time.Duration
}

// NewClientFromEnv constructs a Client using environment variables.
//
// Expected variables:
//   - GEMINI_API_KEY: required API key
//   - GEMINI_IMAGE_MODEL: optional override for the target model
//   - GENERATION_TIMEOUT_SECONDS: optional per-call deadline (default 120)
func NewClientFromEnv(ctx context.Context) (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("genimage: GEMINI_API_KEY environment variable is required")
	}

	modelID := strings.TrimSpace(os.Getenv("GEMINI_IMAGE_MODEL"))
	if modelID == "" {
		modelID = defaultModelID
	}

	timeout := defaultTimeout
	if raw := strings.TrimSpace(os.Getenv("GENERATION_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}

	ai, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genimage: init client: %w", err)
	}

	return &Client{ai: ai, modelID: modelID, timeout: timeout}, nil
}

// Generate sends the prompt and reference images to the model and returns the
// first image payload of the response.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if c == nil || c.ai == nil {
		return nil, errors.New("genimage: client is nil")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("genimage: prompt cannot be empty")
	}

	aspectRatio := strings.TrimSpace(req.AspectRatio)
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}

	parts := make([]*genai.Part, 0, len(req.References)+1)
	for _, ref := range req.References {
		if len(ref.Data) == 0 {
			continue
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: ref.MIMEType, Data: ref.Data},
		})
	}
	parts = append(parts, &genai.Part{Text: prompt})

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens:    2048,
		Temperature:        genai.Ptr[float32](0.8),
		TopP:               genai.Ptr[float32](0.95),
		ResponseModalities: []string{"IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: aspectRatio,
		},
		SafetySettings: []*genai.SafetySetting{
			{
				Category:  genai.HarmCategoryHateSpeech,
				Threshold: genai.HarmBlockThresholdOff,
			},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.ai.Models.GenerateContent(callCtx, c.modelID, contents, config)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("genimage: generate content: %w", err)
	}

	return firstImage(resp)
}

// firstImage extracts the first inline image payload from the response.
func firstImage(resp *genai.GenerateContentResponse) (*Result, error) {
	if resp == nil {
		return nil, ErrNoImage
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &Result{Data: part.InlineData.Data, MIMEType: mimeType}, nil
		}
	}
	return nil, ErrNoImage
}
