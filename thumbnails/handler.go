package thumbnails

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"thumbzilla_back/authorization"
	"thumbzilla_back/genimage"
	"thumbzilla_back/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	referenceFolder = "reference"
	generatedFolder = "generated"
)

// ObjectStorage is the subset of the image store the module depends on.
type ObjectStorage interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, pathSegments ...string) (string, error)
	UploadBytes(ctx context.Context, data []byte, contentType string, pathSegments ...string) (string, error)
}

// Module owns the thumbnail generation lifecycle, owner CRUD and the public
// community gallery.
type Module struct {
	db        *gorm.DB
	storage   ObjectStorage
	generator genimage.Generator
}

// RegisterRoutes bootstraps the thumbnail endpoints under /api/thumbnail and
// /api/user.
func RegisterRoutes(router *gin.Engine, guard *authorization.Guard) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Thumbnail{}); err != nil {
		return nil, fmt.Errorf("thumbnails: migrate tables: %w", err)
	}

	imageStore, err := storage.NewImageStorageFromEnv()
	if err != nil {
		return nil, err
	}
	var objectStore ObjectStorage
	if imageStore != nil {
		objectStore = imageStore
	} else {
		log.Printf("thumbnails: MINIO_* not set, image uploads disabled")
	}

	generator, err := genimage.NewClientFromEnv(context.Background())
	if err != nil {
		return nil, err
	}

	module := NewModule(db, objectStore, generator)
	module.Mount(router, guard)
	return module, nil
}

// NewModule assembles the thumbnail module from explicit dependencies.
func NewModule(db *gorm.DB, store ObjectStorage, generator genimage.Generator) *Module {
	return &Module{db: db, storage: store, generator: generator}
}

// Mount attaches the thumbnail routes to the given router.
func (m *Module) Mount(router gin.IRouter, guard *authorization.Guard) {
	requireAuth := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
	}
	if guard != nil {
		requireAuth = guard.RequireAuthenticated()
	}

	group := router.Group("/api/thumbnail")
	group.GET("/community", m.handleCommunityList)
	group.GET("/community/:id", m.handleCommunityGet)

	secured := group.Group("")
	secured.Use(requireAuth)
	secured.POST("/generate", m.handleGenerate)
	secured.DELETE("/:id", m.handleDelete)
	secured.PATCH("/:id/visibility", m.handleSetVisibility)

	library := router.Group("/api/user")
	library.Use(requireAuth)
	library.GET("/thumbnails", m.handleListOwned)
	library.GET("/thumbnails/:id", m.handleGetOwned)
}

type generateForm struct {
	Title         string `form:"title" binding:"required"`
	Prompt        string `form:"prompt"`
	Style         string `form:"style" binding:"required"`
	AspectRatio   string `form:"aspect_ratio"`
	ColorScheme   string `form:"color_scheme"`
	TextOverlay   bool   `form:"text_overlay"`
	ReferenceHint string `form:"reference_hint"`
}

// handleGenerate runs the full generation flow: upload references, insert the
// record, assemble and persist the prompt, call the model, upload the result
// and finalize. Any failure after the insert is compensated by a best-effort
// isGenerating clear so the record never stays perpetually in progress.
func (m *Module) handleGenerate(c *gin.Context) {
	userID := authorization.CurrentUserID(c)

	var form generateForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "title and style are required"})
		return
	}

	if !ValidStyle(form.Style) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid style"})
		return
	}

	aspectRatio := strings.TrimSpace(form.AspectRatio)
	if aspectRatio == "" {
		aspectRatio = defaultAspectRatio
	}
	if !ValidAspectRatio(aspectRatio) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid aspect_ratio"})
		return
	}

	colorScheme := strings.TrimSpace(form.ColorScheme)
	if colorScheme != "" && !ValidColorScheme(colorScheme) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid color_scheme"})
		return
	}

	files, ok := m.referenceFiles(c)
	if !ok {
		return
	}

	references, ok := m.readReferences(c, files)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	referenceURLs, ok := m.uploadReferences(c, files)
	if !ok {
		return
	}

	thumbnail := Thumbnail{
		UserID:          userID,
		Title:           form.Title,
		UserPrompt:      form.Prompt,
		Style:           form.Style,
		AspectRatio:     aspectRatio,
		ColorScheme:     colorScheme,
		TextOverlay:     form.TextOverlay,
		ReferenceImages: datatypes.NewJSONSlice(referenceURLs),
		PromptUsed:      form.Prompt,
		IsGenerating:    true,
	}
	if err := m.db.WithContext(ctx).Create(&thumbnail).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create thumbnail"})
		return
	}

	prompt, err := BuildPrompt(PromptParams{
		Title:         form.Title,
		Style:         form.Style,
		AspectRatio:   aspectRatio,
		ColorScheme:   colorScheme,
		UserPrompt:    form.Prompt,
		ReferenceHint: form.ReferenceHint,
		HasReferences: len(references) > 0,
	})
	if err != nil {
		m.markGenerationFailed(ctx, thumbnail.ID)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	thumbnail.PromptUsed = prompt
	if err := m.db.WithContext(ctx).Model(&thumbnail).Update("prompt_used", prompt).Error; err != nil {
		m.markGenerationFailed(ctx, thumbnail.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to persist prompt"})
		return
	}

	if m.generator == nil {
		m.markGenerationFailed(ctx, thumbnail.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "generation client is not configured"})
		return
	}

	result, err := m.generator.Generate(ctx, genimage.Request{
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		References:  references,
	})
	if err != nil {
		m.markGenerationFailed(ctx, thumbnail.ID)
		switch {
		case errors.Is(err, genimage.ErrTimeout):
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Thumbnail generation timed out"})
		case errors.Is(err, genimage.ErrNoImage):
			c.JSON(http.StatusInternalServerError, gin.H{"message": "No image returned from model"})
		default:
			log.Printf("thumbnails: generation failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to generate thumbnail"})
		}
		return
	}

	imageURL, err := m.storage.UploadBytes(ctx, result.Data, result.MIMEType, generatedFolder)
	if err != nil {
		m.markGenerationFailed(ctx, thumbnail.ID)
		log.Printf("thumbnails: upload generated image failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to upload generated image"})
		return
	}

	updates := map[string]interface{}{
		"image_url":     imageURL,
		"is_generating": false,
	}
	if err := m.db.WithContext(ctx).Model(&thumbnail).Updates(updates).Error; err != nil {
		m.markGenerationFailed(ctx, thumbnail.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to finalize thumbnail"})
		return
	}
	thumbnail.ImageURL = imageURL
	thumbnail.IsGenerating = false

	c.JSON(http.StatusOK, gin.H{"message": "Thumbnail generated", "thumbnail": thumbnail})
}

// referenceFiles extracts and validates the multipart reference images.
// Writes the error response itself when validation fails.
func (m *Module) referenceFiles(c *gin.Context) ([]*multipart.FileHeader, bool) {
	multipartForm, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, true
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid multipart payload"})
		return nil, false
	}

	files := multipartForm.File["reference_images"]
	if len(files) > maxReferenceImages {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("reference_images can have at most %d items", maxReferenceImages)})
		return nil, false
	}

	for _, file := range files {
		if file.Size > storage.MaxImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("reference image %q exceeds the size limit", file.Filename)})
			return nil, false
		}
		contentType := strings.TrimSpace(file.Header.Get("Content-Type"))
		if !storage.IsAllowedImageContent(contentType) {
			c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("reference image %q has an unsupported content type", file.Filename)})
			return nil, false
		}
	}

	return files, true
}

// readReferences loads the raw bytes handed to the generation client.
func (m *Module) readReferences(c *gin.Context, files []*multipart.FileHeader) ([]genimage.ReferenceImage, bool) {
	references := make([]genimage.ReferenceImage, 0, len(files))
	for _, file := range files {
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "failed to read reference image"})
			return nil, false
		}
		data, err := io.ReadAll(io.LimitReader(src, storage.MaxImageBytes+1))
		src.Close()
		if err != nil || int64(len(data)) > storage.MaxImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"message": "failed to read reference image"})
			return nil, false
		}
		references = append(references, genimage.ReferenceImage{
			MIMEType: file.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return references, true
}

// uploadReferences persists the reference images to object storage. A failure
// here aborts the request before any record is created.
func (m *Module) uploadReferences(c *gin.Context, files []*multipart.FileHeader) ([]string, bool) {
	if m.storage == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "image storage is not configured"})
		return nil, false
	}

	urls := make([]string, 0, len(files))
	for _, file := range files {
		uploaded, err := m.storage.Upload(c.Request.Context(), file, referenceFolder)
		if err != nil {
			log.Printf("thumbnails: upload reference image failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to upload reference image"})
			return nil, false
		}
		urls = append(urls, uploaded)
	}
	return urls, true
}

// markGenerationFailed clears isGenerating so a failed attempt never stays
// perpetually in progress. Best effort only: its own failure is logged, not
// retried, and the image URL stays empty.
func (m *Module) markGenerationFailed(ctx context.Context, id uint64) {
	err := m.db.WithContext(ctx).
		Model(&Thumbnail{}).
		Where("id = ?", id).
		UpdateColumn("is_generating", false).Error
	if err != nil {
		log.Printf("thumbnails: clear isGenerating for %d failed: %v", id, err)
	}
}

func (m *Module) handleDelete(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid thumbnail id"})
		return
	}
	userID := authorization.CurrentUserID(c)

	// Scoped to the owner: deleting someone else's record is a silent no-op.
	result := m.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Thumbnail{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to delete thumbnail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Thumbnail deleted successfully"})
}

type visibilityRequest struct {
	IsPublic *bool `json:"isPublic"`
}

func (m *Module) handleSetVisibility(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid thumbnail id"})
		return
	}
	userID := authorization.CurrentUserID(c)

	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsPublic == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "isPublic must be boolean"})
		return
	}

	result := m.db.WithContext(c.Request.Context()).
		Model(&Thumbnail{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_public", *req.IsPublic)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to update visibility"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Thumbnail not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Visibility updated",
		"thumbnail": gin.H{"id": id, "isPublic": *req.IsPublic},
	})
}

// communityFilter applies the shared gallery visibility filter plus any
// caller-provided facets to the given query.
func communityFilter(c *gin.Context, tx *gorm.DB) *gorm.DB {
	tx = tx.Where("is_public = ? AND is_generating = ? AND image_url <> ''", true, false)

	if style := strings.TrimSpace(c.Query("style")); style != "" {
		tx = tx.Where("style = ?", style)
	}
	if ratio := strings.TrimSpace(c.Query("aspect_ratio")); ratio != "" {
		tx = tx.Where("aspect_ratio = ?", ratio)
	}
	if scheme := strings.TrimSpace(c.Query("color_scheme")); scheme != "" {
		tx = tx.Where("color_scheme = ?", scheme)
	}
	if raw, present := c.GetQuery("text_overlay"); present {
		tx = tx.Where("text_overlay = ?", strings.EqualFold(strings.TrimSpace(raw), "true"))
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		tx = tx.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	return tx
}

func (m *Module) handleCommunityList(c *gin.Context) {
	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), 24)
	if limit > 60 {
		limit = 60
	}
	offset := (page - 1) * limit

	ctx := c.Request.Context()

	var total int64
	if err := communityFilter(c, m.db.WithContext(ctx).Model(&Thumbnail{})).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list thumbnails"})
		return
	}

	var items []Thumbnail
	err := communityFilter(c, m.db.WithContext(ctx).Model(&Thumbnail{})).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list thumbnails"})
		return
	}

	thumbnails := make([]gin.H, 0, len(items))
	for i := range items {
		thumbnails = append(thumbnails, communityDTO(&items[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"page":       page,
		"limit":      limit,
		"total":      total,
		"totalPages": int(math.Ceil(float64(total) / float64(limit))),
		"thumbnails": thumbnails,
	})
}

func (m *Module) handleCommunityGet(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid thumbnail id"})
		return
	}

	var thumbnail Thumbnail
	result := m.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_public = ? AND is_generating = ? AND image_url <> ''", id, true, false).
		First(&thumbnail)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Thumbnail not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load thumbnail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"thumbnail": communityDTO(&thumbnail)})
}

func (m *Module) handleListOwned(c *gin.Context) {
	userID := authorization.CurrentUserID(c)

	var thumbnails []Thumbnail
	err := m.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&thumbnails).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to list thumbnails"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"thumbnails": thumbnails})
}

func (m *Module) handleGetOwned(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid thumbnail id"})
		return
	}
	userID := authorization.CurrentUserID(c)

	var thumbnail Thumbnail
	result := m.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&thumbnail)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Thumbnail not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load thumbnail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"thumbnail": thumbnail})
}

func parseID(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, errors.New("missing id")
	}
	return strconv.ParseUint(trimmed, 10, 64)
}

func parsePositiveInt(raw string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
