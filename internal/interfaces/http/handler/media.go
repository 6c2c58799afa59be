package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	mediaapp "github.com/backoffice/saas/internal/application/media"
	"github.com/backoffice/saas/internal/infrastructure/storage"
	"github.com/backoffice/saas/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MediaHandler handles the media library of the current tenant
type MediaHandler struct {
	BaseHandler
	mediaService *mediaapp.MediaService
}

// NewMediaHandler creates a new MediaHandler
func NewMediaHandler(mediaService *mediaapp.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// Upload godoc
// @Summary      Upload a file
// @Description  multipart/form-data with file, collection, name, props (JSON object), model_type, model_id
// @Tags         media
// @Router       /media [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.bindError(c, err)
			return
		}
		h.BadRequest(c, "Missing file field")
		return
	}
	if fh.Size > h.mediaService.MaxSize() {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "File exceeds maximum allowed size")
		return
	}

	in := mediaapp.UploadInput{
		Collection:   c.PostForm("collection"),
		FileName:     fh.Filename,
		Name:         c.PostForm("name"),
		DeclaredSize: fh.Size,
		ModelType:    c.PostForm("model_type"),
	}
	if raw := c.PostForm("props"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.CustomProperties); err != nil {
			h.BadRequest(c, "props must be a JSON object")
			return
		}
	}
	if raw := c.PostForm("model_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid model_id format")
			return
		}
		in.ModelID = &id
	}

	file, err := fh.Open()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer func(f multipart.File) { _ = f.Close() }(file)
	in.Content = file

	m, err := h.mediaService.Upload(c.Request.Context(), tenantID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, m)
}

// Import godoc
// @Summary      Import a file from a remote URL
// @Tags         media
// @Router       /media/import [post]
func (h *MediaHandler) Import(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req mediaapp.ImportMediaRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.mediaService.ImportFromURL(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, m)
}

// List godoc
// @Summary      List media
// @Tags         media
// @Router       /media [get]
func (h *MediaHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter mediaapp.MediaListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	items, total, err := h.mediaService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Usage godoc
// @Summary      Storage used by the tenant
// @Tags         media
// @Router       /media/usage [get]
func (h *MediaHandler) Usage(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	usage, err := h.mediaService.Usage(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, usage)
}

// Get godoc
// @Summary      Get a media item; ?trashed=true includes trashed items
// @Tags         media
// @Router       /media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	withTrashed, _ := strconv.ParseBool(c.Query("trashed"))
	m, err := h.mediaService.Get(c.Request.Context(), tenantID, id, withTrashed)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// Update godoc
// @Summary      Rename or change custom properties
// @Tags         media
// @Router       /media/{id} [patch]
func (h *MediaHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	var req mediaapp.UpdateMediaRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.mediaService.UpdateProperties(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// Delete godoc
// @Summary      Move to trash
// @Tags         media
// @Router       /media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.mediaService.SoftDelete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Restore godoc
// @Summary      Restore from trash
// @Tags         media
// @Router       /media/{id}/restore [post]
func (h *MediaHandler) Restore(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	m, err := h.mediaService.Restore(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// ForceDelete godoc
// @Summary      Delete permanently with its files
// @Tags         media
// @Router       /media/{id}/force [delete]
func (h *MediaHandler) ForceDelete(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.mediaService.ForceDelete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// EmptyTrash godoc
// @Summary      Purge the trash
// @Description  Items past the retention period are purged; ?all=true purges everything trashed.
// @Tags         media
// @Router       /media/trash/empty [post]
func (h *MediaHandler) EmptyTrash(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var olderThan time.Duration
	if all, _ := strconv.ParseBool(c.Query("all")); all {
		olderThan = time.Nanosecond
	}
	result, err := h.mediaService.EmptyTrash(c.Request.Context(), tenantID, olderThan)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Transform godoc
// @Summary      Apply image operations
// @Tags         media
// @Router       /media/{id}/transform [post]
func (h *MediaHandler) Transform(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	var req mediaapp.TransformMediaRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.mediaService.Transform(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, m)
}

// URL godoc
// @Summary      Time-limited link to the file or a conversion
// @Param        conversion query string false "thumb"
// @Param        ttl query int false "seconds"
// @Tags         media
// @Router       /media/{id}/url [get]
func (h *MediaHandler) URL(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			h.BadRequest(c, "ttl must be a positive number of seconds")
			return
		}
		ttl = time.Duration(secs) * time.Second
	}
	u, err := h.mediaService.URL(c.Request.Context(), tenantID, id, c.Query("conversion"), ttl)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, u)
}

// Download godoc
// @Summary      Stream the file or a conversion
// @Tags         media
// @Router       /media/{id}/download [get]
func (h *MediaHandler) Download(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	d, err := h.mediaService.Download(c.Request.Context(), tenantID, id, c.Query("conversion"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer func() { _ = d.Body.Close() }()
	c.DataFromReader(http.StatusOK, d.Size, d.MimeType, d.Body, map[string]string{
		"Content-Disposition": contentDisposition("attachment", d.FileName),
	})
}

func (h *MediaHandler) ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}

// FileHandler serves local-disk objects behind signed tokens
type FileHandler struct {
	BaseHandler
	storage mediaapp.ObjectStorage
	signer  *storage.URLSigner
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(objects mediaapp.ObjectStorage, signer *storage.URLSigner) *FileHandler {
	return &FileHandler{storage: objects, signer: signer}
}

// Serve godoc
// @Summary      Public file download with a signed token
// @Tags         media
// @Router       /media/files/{key} [get]
func (h *FileHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.signer.Verify(c.Query("token"), key); err != nil {
		status := http.StatusForbidden
		if errors.Is(err, storage.ErrExpiredToken) {
			status = http.StatusGone
		}
		h.Error(c, status, dto.ErrCodeForbidden, err.Error())
		return
	}
	body, info, err := h.storage.Get(c.Request.Context(), key)
	if errors.Is(err, mediaapp.ErrObjectNotFound) {
		h.NotFound(c, "File not found")
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer func(r io.ReadCloser) { _ = r.Close() }(body)

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size, contentType, body, map[string]string{
		"Content-Disposition": contentDisposition("inline", key[strings.LastIndex(key, "/")+1:]),
	})
}

func contentDisposition(kind, fileName string) string {
	return kind + `; filename="` + strings.ReplaceAll(fileName, `"`, "") + `"`
}
