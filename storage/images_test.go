package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowedImageContent(t *testing.T) {
	allowed := []string{"image/png", "image/x-png", "image/jpeg", "image/pjpeg", "image/webp", " IMAGE/PNG "}
	for _, contentType := range allowed {
		assert.True(t, IsAllowedImageContent(contentType), contentType)
	}

	rejected := []string{"image/gif", "image/svg+xml", "application/pdf", "text/html", ""}
	for _, contentType := range rejected {
		assert.False(t, IsAllowedImageContent(contentType), contentType)
	}
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".png", imageExtension("photo.jpeg", "image/png"))
	assert.Equal(t, ".jpg", imageExtension("", "image/jpeg"))
	assert.Equal(t, ".webp", imageExtension("", "image/webp"))
	assert.Equal(t, ".jpg", imageExtension("photo.JPG", "application/octet-stream"))
	assert.Equal(t, ".bin", imageExtension("", ""))
}

func TestBuildObjectName(t *testing.T) {
	name := buildObjectName(".png", "reference")
	assert.True(t, strings.HasPrefix(name, "thumbnails/reference/"), name)
	assert.True(t, strings.HasSuffix(name, ".png"), name)

	// Segments are cleaned of surrounding slashes and empty parts skipped.
	name = buildObjectName(".jpg", "/generated/", "")
	assert.True(t, strings.HasPrefix(name, "thumbnails/generated/"), name)

	other := buildObjectName(".png", "reference")
	assert.NotEqual(t, name, other)
}

func TestBuildPublicURL(t *testing.T) {
	s := &ImageStorage{bucket: "media", publicURL: "https://cdn.example.com"}
	assert.Equal(t,
		"https://cdn.example.com/media/thumbnails/generated/a.png",
		s.buildPublicURL("thumbnails/generated/a.png"),
	)
}

func TestObjectNameFromURL(t *testing.T) {
	s := &ImageStorage{bucket: "media", publicURL: "https://cdn.example.com"}

	name, ok := s.objectNameFromURL("https://cdn.example.com/media/thumbnails/generated/a.png")
	require.True(t, ok)
	assert.Equal(t, "thumbnails/generated/a.png", name)

	name, ok = s.objectNameFromURL("/media/thumbnails/reference/b.jpg")
	require.True(t, ok)
	assert.Equal(t, "thumbnails/reference/b.jpg", name)

	_, ok = s.objectNameFromURL("https://elsewhere.example.net/media/a.png")
	assert.False(t, ok)

	_, ok = s.objectNameFromURL("")
	assert.False(t, ok)
}
