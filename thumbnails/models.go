package thumbnails

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

const (
	defaultAspectRatio = "16:9"
	maxReferenceImages = 2
)

// Thumbnail represents one generation attempt and its outcome. A record with
// IsGenerating false and an empty ImageURL is a failed attempt.
type Thumbnail struct {
	ID              uint64                      `gorm:"primaryKey" json:"id"`
	UserID          uint64                      `gorm:"index;not null" json:"user_id"`
	Title           string                      `gorm:"size:255;not null" json:"title"`
	UserPrompt      string                      `gorm:"type:text" json:"user_prompt"`
	Style           string                      `gorm:"size:64;not null" json:"style"`
	AspectRatio     string                      `gorm:"size:16;not null;default:'16:9'" json:"aspect_ratio"`
	ColorScheme     string                      `gorm:"size:32" json:"color_scheme"`
	TextOverlay     bool                        `gorm:"default:false" json:"text_overlay"`
	ReferenceImages datatypes.JSONSlice[string] `json:"reference_images"`
	PromptUsed      string                      `gorm:"type:text" json:"prompt_used"`
	ImageURL        string                      `gorm:"size:512;not null;default:''" json:"image_url"`
	IsGenerating    bool                        `gorm:"not null" json:"isGenerating"`
	IsPublic        bool                        `gorm:"not null;default:false;index" json:"isPublic"`
	CreatedAt       time.Time                   `json:"createdAt"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
}

// communityDTO is the reduced projection exposed by the public gallery.
func communityDTO(t *Thumbnail) gin.H {
	return gin.H{
		"id":           t.ID,
		"title":        t.Title,
		"image_url":    t.ImageURL,
		"style":        t.Style,
		"aspect_ratio": t.AspectRatio,
		"color_scheme": t.ColorScheme,
		"text_overlay": t.TextOverlay,
		"createdAt":    t.CreatedAt,
	}
}
