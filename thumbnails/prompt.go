package thumbnails

import (
	"fmt"
	"strings"
)

// stylePrompts maps each thumbnail style to its fixed descriptive clause.
var stylePrompts = map[string]string{
	"Bold & Graphic":  "eye-catching thumbnail, bold typography, vibrant colors, expressive facial reaction, dramatic lighting, high contrast, click-worthy composition, professional style",
	"Tech/Futuristic": "futuristic thumbnail, sleek modern design, digital UI elements, glowing accents, holographic effects, cyber-tech aesthetic, sharp lighting, high-tech atmosphere",
	"Minimalist":      "minimalist thumbnail, clean layout, simple shapes, limited color palette, plenty of negative space, modern flat design, clear focal point",
	"Photorealistic":  "photorealistic thumbnail, ultra-realistic lighting, natural skin tones, candid moment, DSLR-style photography, lifestyle realism, shallow depth of field",
	"Illustrated":     "illustrated thumbnail, custom digital illustration, stylized characters, bold outlines, vibrant colors, creative cartoon or vector art style",
}

// colorSchemeDescriptions maps each color scheme to its fixed descriptive clause.
var colorSchemeDescriptions = map[string]string{
	"vibrant":    "vibrant and energetic colors, high saturation, bold contrasts, eye-catching palette",
	"sunset":     "warm sunset tones, orange pink and purple hues, soft gradients, cinematic glow",
	"forest":     "natural green tones, earthy colors, calm and organic palette, fresh atmosphere",
	"neon":       "neon glow effects, electric blues and pinks, cyberpunk lighting, high contrast glow",
	"purple":     "purple-dominant color palette, magenta and violet tones, modern and stylish mood",
	"monochrome": "black and white color scheme, high contrast, dramatic lighting, timeless aesthetic",
	"ocean":      "cool blue and teal tones, aquatic color palette, fresh and clean atmosphere",
	"pastel":     "soft pastel colors, low saturation, gentle tones, calm and friendly aesthetic",
}

var validAspectRatios = map[string]bool{
	"16:9": true,
	"1:1":  true,
	"9:16": true,
}

// ValidStyle reports whether the style is one of the known enum values.
func ValidStyle(style string) bool {
	_, ok := stylePrompts[style]
	return ok
}

// ValidColorScheme reports whether the color scheme is a known enum value.
func ValidColorScheme(scheme string) bool {
	_, ok := colorSchemeDescriptions[scheme]
	return ok
}

// ValidAspectRatio reports whether the aspect ratio is a known enum value.
func ValidAspectRatio(ratio string) bool {
	return validAspectRatios[ratio]
}

// PromptParams carries the request fields the final prompt is assembled from.
type PromptParams struct {
	Title         string
	Style         string
	AspectRatio   string
	ColorScheme   string
	UserPrompt    string
	ReferenceHint string
	HasReferences bool
}

// BuildPrompt deterministically assembles the generation prompt. Unrecognized
// style or color scheme keys are an error, never a silently embedded
// placeholder.
func BuildPrompt(params PromptParams) (string, error) {
	styleDescription, ok := stylePrompts[params.Style]
	if !ok {
		return "", fmt.Errorf("thumbnails: unknown style %q", params.Style)
	}

	aspectRatio := strings.TrimSpace(params.AspectRatio)
	if aspectRatio == "" {
		aspectRatio = defaultAspectRatio
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s YouTube thumbnail about: %q.", styleDescription, params.Title)

	if params.ColorScheme != "" {
		colorDescription, ok := colorSchemeDescriptions[params.ColorScheme]
		if !ok {
			return "", fmt.Errorf("thumbnails: unknown color scheme %q", params.ColorScheme)
		}
		fmt.Fprintf(&b, " Use a %s color scheme.", colorDescription)
	}

	if details := strings.TrimSpace(params.UserPrompt); details != "" {
		fmt.Fprintf(&b, " Additional details: %s.", details)
	}

	if params.HasReferences {
		b.WriteString(" Use the provided reference image(s) as constraints: preserve the person/background style if present, keep strong subject separation, avoid clutter, and ensure high readability on mobile.")
		if hint := strings.TrimSpace(params.ReferenceHint); hint != "" {
			fmt.Fprintf(&b, " Reference hint: %s.", hint)
		}
	}

	fmt.Fprintf(&b, " The thumbnail should be %s, visually stunning and designed to maximize click-through rate. Make it bold, professional, and impossible to ignore.", aspectRatio)

	return b.String(), nil
}
