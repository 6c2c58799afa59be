// Package media manages the per-tenant file library: uploads, URL imports,
// image edits, signed links and the trash.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/infrastructure/telemetry"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultMaxSize        int64 = 20 << 20
	DefaultThumbSize            = 300
	DefaultURLTTL               = 15 * time.Minute
	MaxURLTTL                   = 7 * 24 * time.Hour
	DefaultTrashRetention       = 30 * 24 * time.Hour
	DefaultBatchLimit           = 100
)

// Options tunes the media service
type Options struct {
	MaxSize        int64
	ThumbSize      int
	URLTTL         time.Duration
	TrashRetention time.Duration
	BatchLimit     int
}

func (o Options) withDefaults() Options {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.ThumbSize <= 0 {
		o.ThumbSize = DefaultThumbSize
	}
	if o.URLTTL <= 0 {
		o.URLTTL = DefaultURLTTL
	}
	if o.TrashRetention <= 0 {
		o.TrashRetention = DefaultTrashRetention
	}
	if o.BatchLimit <= 0 {
		o.BatchLimit = DefaultBatchLimit
	}
	return o
}

// MediaServiceConfig holds the collaborators of MediaService
type MediaServiceConfig struct {
	Repo      media.Repository
	Storage   ObjectStorage
	Processor ImageProcessor
	Fetcher   Fetcher
	Quota     StorageQuota
	Tenants   TenantLister
	Publisher shared.EventPublisher
	Logger    *zap.Logger
	Options   Options
}

// MediaService handles media operations
type MediaService struct {
	repo      media.Repository
	storage   ObjectStorage
	processor ImageProcessor
	fetcher   Fetcher
	quota     StorageQuota
	tenants   TenantLister
	publisher shared.EventPublisher
	logger    *zap.Logger
	opts      Options
	now       func() time.Time
}

// NewMediaService creates a new MediaService
func NewMediaService(cfg MediaServiceConfig) *MediaService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaService{
		repo:      cfg.Repo,
		storage:   cfg.Storage,
		processor: cfg.Processor,
		fetcher:   cfg.Fetcher,
		quota:     cfg.Quota,
		tenants:   cfg.Tenants,
		publisher: cfg.Publisher,
		logger:    logger,
		opts:      cfg.Options.withDefaults(),
		now:       time.Now,
	}
}

// MaxSize is the largest accepted file in bytes
func (s *MediaService) MaxSize() int64 {
	return s.opts.MaxSize
}

// Upload stores a file received from the client. The MIME type is sniffed
// from the content; the client's Content-Type is not trusted.
func (s *MediaService) Upload(ctx context.Context, tenantID uuid.UUID, in UploadInput) (*MediaResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "media", "upload")
	defer span.End()

	collection, err := media.ResolveCollection(in.Collection)
	if err != nil {
		return nil, err
	}
	if in.DeclaredSize > s.opts.MaxSize {
		return nil, s.tooLarge()
	}
	if in.Content == nil {
		return nil, shared.InvalidInput("file is required")
	}
	data, err := io.ReadAll(io.LimitReader(in.Content, s.opts.MaxSize+1))
	if err != nil {
		return nil, shared.InvalidInput("could not read upload").WithCause(err)
	}
	if int64(len(data)) > s.opts.MaxSize {
		return nil, s.tooLarge()
	}
	if len(data) == 0 {
		return nil, shared.InvalidInput("file is empty")
	}

	m, err := s.store(ctx, data, media.NewMediaParams{
		TenantID:         tenantID,
		Collection:       collection,
		Name:             in.Name,
		FileName:         in.FileName,
		MimeType:         mimetype.Detect(data).String(),
		Source:           media.SourceUpload,
		CustomProperties: in.CustomProperties,
		ModelType:        in.ModelType,
		ModelID:          in.ModelID,
	}, func(m *media.Media) { m.MarkUploaded() })
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "media.id", m.ID.String(), "media.bytes", m.TotalBytes())
	s.logger.Info("Media uploaded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("media_id", m.ID.String()),
		zap.String("collection", m.Collection),
		zap.String("mime_type", m.MimeType),
		zap.Int64("size", m.Size))
	resp := ToMediaResponse(m)
	return &resp, nil
}

// ImportFromURL downloads a remote file into the library. The fetch
// diagnostics are stored on the item and returned with failures.
func (s *MediaService) ImportFromURL(ctx context.Context, tenantID uuid.UUID, req ImportMediaRequest) (*MediaResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "media", "import_url")
	defer span.End()

	collection, err := media.ResolveCollection(req.Collection)
	if err != nil {
		return nil, err
	}
	if s.fetcher == nil {
		return nil, shared.InvalidState("url import is not configured")
	}
	file, err := s.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		telemetry.RecordError(span, err)
		var fe *FetchError
		if errors.As(err, &fe) {
			s.logger.Warn("URL import failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("url", req.URL),
				zap.Int("attempts", fe.Diagnostics.Attempts),
				zap.Bool("permanent", fe.Permanent),
				zap.Error(fe.Err))
			return nil, shared.InvalidInput("could not fetch url").
				WithDetail("diagnostics", fe.Diagnostics).
				WithCause(err)
		}
		return nil, err
	}
	if int64(len(file.Data)) > s.opts.MaxSize {
		return nil, s.tooLarge().WithDetail("diagnostics", file.Diagnostics)
	}
	if len(file.Data) == 0 {
		return nil, shared.InvalidInput("remote file is empty").WithDetail("diagnostics", file.Diagnostics)
	}

	diag := file.Diagnostics
	m, err := s.store(ctx, file.Data, media.NewMediaParams{
		TenantID:         tenantID,
		Collection:       collection,
		Name:             req.Name,
		FileName:         file.FileName,
		MimeType:         mimetype.Detect(file.Data).String(),
		Source:           media.SourceURL,
		SourceURL:        req.URL,
		Diagnostics:      &diag,
		CustomProperties: req.CustomProperties,
		ModelType:        req.ModelType,
		ModelID:          req.ModelID,
	}, func(m *media.Media) { m.MarkUploaded() })
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Media imported from URL",
		zap.String("tenant_id", tenantID.String()),
		zap.String("media_id", m.ID.String()),
		zap.String("url", req.URL),
		zap.Float64("total_ms", diag.TotalMs))
	resp := ToMediaResponse(m)
	return &resp, nil
}

// store persists a new item: objects first, then the row. The quota is
// reserved up front and given back when any later step fails.
func (s *MediaService) store(ctx context.Context, data []byte, params media.NewMediaParams, mark func(*media.Media)) (*media.Media, error) {
	params.Size = int64(len(data))
	params.Disk = s.storage.Disk()
	m, err := media.NewMedia(params)
	if err != nil {
		return nil, err
	}

	var thumb *Image
	if m.IsImage() && s.processor != nil {
		w, h, err := s.processor.Dimensions(data)
		if err != nil {
			return nil, shared.InvalidInput("image could not be decoded").WithCause(err)
		}
		m.SetDimensions(w, h)
		thumb, err = s.processor.Thumbnail(data, s.opts.ThumbSize)
		if err != nil {
			s.logger.Warn("Thumbnail generation failed",
				zap.String("media_id", m.ID.String()),
				zap.Error(err))
			thumb = nil
		} else {
			m.SetConversion(media.ThumbConversion, conversionOf(m.ConversionKey(media.ThumbConversion), thumb))
		}
	}

	reserved := m.TotalBytes()
	if err := s.quota.ConsumeStorage(ctx, m.TenantID, reserved); err != nil {
		return nil, err
	}
	rollback := func() {
		s.deleteObjects(ctx, m.ObjectKeys())
		if err := s.quota.ReleaseStorage(ctx, m.TenantID, reserved); err != nil {
			s.logger.Error("Failed to release storage after aborted upload",
				zap.String("tenant_id", m.TenantID.String()),
				zap.Int64("bytes", reserved),
				zap.Error(err))
		}
	}

	if err := s.storage.Put(ctx, m.StorageKey, bytes.NewReader(data), m.Size, m.MimeType); err != nil {
		rollback()
		return nil, err
	}
	if thumb != nil {
		key := m.ConversionKey(media.ThumbConversion)
		if err := s.storage.Put(ctx, key, bytes.NewReader(thumb.Data), int64(len(thumb.Data)), thumb.MimeType); err != nil {
			rollback()
			return nil, err
		}
	}

	mark(m)
	if err := s.repo.Save(ctx, m); err != nil {
		rollback()
		return nil, err
	}
	s.publish(ctx, m)

	collection, _ := media.ResolveCollection(m.Collection)
	if collection.SingleFile {
		s.trashOthers(ctx, m)
	}
	return m, nil
}

// trashOthers keeps a single live item in single-file collections
func (s *MediaService) trashOthers(ctx context.Context, keep *media.Media) {
	live, err := s.repo.FindLiveInCollection(ctx, keep.TenantID, keep.Collection)
	if err != nil {
		s.logger.Warn("Failed to load collection for single-file rule",
			zap.String("collection", keep.Collection),
			zap.Error(err))
		return
	}
	for i := range live {
		old := &live[i]
		if old.ID == keep.ID {
			continue
		}
		if err := old.Trash(s.now()); err != nil {
			continue
		}
		if err := s.repo.Save(ctx, old); err != nil {
			s.logger.Warn("Failed to trash replaced media",
				zap.String("media_id", old.ID.String()),
				zap.Error(err))
			continue
		}
		s.publish(ctx, old)
	}
}

// Get returns a media item; trashed items only when withTrashed is set
func (s *MediaService) Get(ctx context.Context, tenantID, id uuid.UUID, withTrashed bool) (*MediaResponse, error) {
	m, err := s.repo.FindByIDForTenant(ctx, tenantID, id, withTrashed)
	if err != nil {
		return nil, err
	}
	resp := ToMediaResponse(m)
	return &resp, nil
}

// List returns a page of the tenant's media
func (s *MediaService) List(ctx context.Context, tenantID uuid.UUID, filter MediaListFilter) ([]MediaResponse, int64, error) {
	q, err := filter.ToListQuery()
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.List(ctx, tenantID, q)
	if err != nil {
		return nil, 0, err
	}
	return ToMediaResponses(items), total, nil
}

// Usage summarizes the tenant's library
func (s *MediaService) Usage(ctx context.Context, tenantID uuid.UUID) (media.Usage, error) {
	return s.repo.Usage(ctx, tenantID)
}

// UpdateProperties changes the name, custom properties or order of an item
func (s *MediaService) UpdateProperties(ctx context.Context, tenantID, id uuid.UUID, req UpdateMediaRequest) (*MediaResponse, error) {
	m, err := s.repo.FindByIDForTenant(ctx, tenantID, id, false)
	if err != nil {
		return nil, err
	}
	if err := m.UpdateProperties(req.Name, req.CustomProperties, req.OrderColumn); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	resp := ToMediaResponse(m)
	return &resp, nil
}

// SoftDelete moves an item to the trash. Objects and quota are kept until
// the item is purged.
func (s *MediaService) SoftDelete(ctx context.Context, tenantID, id uuid.UUID) error {
	m, err := s.repo.FindByIDForTenant(ctx, tenantID, id, true)
	if err != nil {
		return err
	}
	if err := m.Trash(s.now()); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return err
	}
	s.publish(ctx, m)
	s.logger.Info("Media trashed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("media_id", id.String()))
	return nil
}

// Restore takes an item out of the trash. A single-file collection that
// already holds a live item refuses the restore.
func (s *MediaService) Restore(ctx context.Context, tenantID, id uuid.UUID) (*MediaResponse, error) {
	m, err := s.repo.FindByIDForTenant(ctx, tenantID, id, true)
	if err != nil {
		return nil, err
	}
	collection, err := media.ResolveCollection(m.Collection)
	if err != nil {
		return nil, err
	}
	if collection.SingleFile && m.IsTrashed() {
		live, err := s.repo.FindLiveInCollection(ctx, tenantID, m.Collection)
		if err != nil {
			return nil, err
		}
		if len(live) > 0 {
			return nil, shared.InvalidState("collection %s already holds a file", m.Collection)
		}
	}
	if err := m.Restore(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	s.publish(ctx, m)
	resp := ToMediaResponse(m)
	return &resp, nil
}

// ForceDelete removes an item and its objects permanently and returns its
// bytes to the quota. When the original cannot be removed from storage the
// row is kept so the delete can be retried.
func (s *MediaService) ForceDelete(ctx context.Context, tenantID, id uuid.UUID) error {
	m, err := s.repo.FindByIDForTenant(ctx, tenantID, id, true)
	if err != nil {
		return err
	}
	return s.purge(ctx, m)
}

func (s *MediaService) purge(ctx context.Context, m *media.Media) error {
	for _, key := range m.ObjectKeys() {
		err := s.storage.Delete(ctx, key)
		if err == nil {
			continue
		}
		if key != m.StorageKey {
			s.logger.Warn("Failed to delete conversion object",
				zap.String("media_id", m.ID.String()),
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		exists, existsErr := s.storage.Exists(ctx, key)
		if existsErr != nil || exists {
			return fmt.Errorf("delete stored file %s: %w", key, err)
		}
	}

	if err := s.repo.Delete(ctx, m.TenantID, m.ID); err != nil {
		return err
	}
	if err := s.quota.ReleaseStorage(ctx, m.TenantID, m.TotalBytes()); err != nil {
		s.logger.Error("Failed to release storage",
			zap.String("tenant_id", m.TenantID.String()),
			zap.String("media_id", m.ID.String()),
			zap.Int64("bytes", m.TotalBytes()),
			zap.Error(err))
	}
	m.MarkDeleted()
	s.publish(ctx, m)
	s.logger.Info("Media deleted permanently",
		zap.String("tenant_id", m.TenantID.String()),
		zap.String("media_id", m.ID.String()))
	return nil
}

// EmptyTrash purges the tenant's items trashed longer than olderThan.
// A zero olderThan uses the configured retention.
func (s *MediaService) EmptyTrash(ctx context.Context, tenantID uuid.UUID, olderThan time.Duration) (*EmptyTrashResult, error) {
	if olderThan <= 0 {
		olderThan = s.opts.TrashRetention
	}
	cutoff := s.now().Add(-olderThan)
	result := &EmptyTrashResult{Tenants: 1}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := s.repo.FindTrashedBefore(ctx, tenantID, cutoff, s.opts.BatchLimit)
		if err != nil {
			return result, err
		}
		deleted := 0
		for i := range batch {
			if err := s.purge(ctx, &batch[i]); err != nil {
				result.Failed++
				s.logger.Warn("Failed to purge trashed media",
					zap.String("media_id", batch[i].ID.String()),
					zap.Error(err))
				continue
			}
			deleted++
		}
		result.Deleted += deleted
		// a batch without progress would be returned again
		if len(batch) < s.opts.BatchLimit || deleted == 0 {
			return result, nil
		}
	}
}

// EmptyTrashAll runs EmptyTrash for every tenant
func (s *MediaService) EmptyTrashAll(ctx context.Context, olderThan time.Duration) (*EmptyTrashResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "media", "empty_trash")
	defer span.End()

	ids, err := s.tenants.FindIDs(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	total := &EmptyTrashResult{}
	for _, id := range ids {
		r, err := s.EmptyTrash(ctx, id, olderThan)
		if r != nil {
			total.Deleted += r.Deleted
			total.Failed += r.Failed
		}
		total.Tenants++
		if err != nil {
			if ctx.Err() != nil {
				return total, err
			}
			total.Failed++
			s.logger.Warn("Failed to empty trash",
				zap.String("tenant_id", id.String()),
				zap.Error(err))
		}
	}
	if total.Deleted > 0 || total.Failed > 0 {
		s.logger.Info("Emptied media trash",
			zap.Int("tenants", total.Tenants),
			zap.Int("deleted", total.Deleted),
			zap.Int("failed", total.Failed))
	}
	return total, nil
}

// Transform applies an edit pipeline to an image. SaveAsNew stores the
// result as a new item; SaveAsReplace overwrites the original in place.
func (s *MediaService) Transform(ctx context.Context, tenantID, id uuid.UUID, req TransformMediaRequest) (*MediaResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "media", "transform")
	defer span.End()

	mode, err := media.ParseSaveMode(req.SaveAs)
	if err != nil {
		return nil, err
	}
	if err := media.ValidateOperations(req.Operations); err != nil {
		return nil, err
	}
	src, err := s.repo.FindByIDForTenant(ctx, tenantID, id, false)
	if err != nil {
		return nil, err
	}
	if !src.IsImage() {
		return nil, shared.InvalidInput("only images can be transformed").WithDetail("mime_type", src.MimeType)
	}

	data, err := s.readObject(ctx, src.StorageKey)
	if err != nil {
		return nil, err
	}
	out, err := s.processor.Transform(data, src.MimeType, req.Operations)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "media.id", src.ID.String(), "media.save_mode", string(mode), "media.operations", len(req.Operations))

	var result *media.Media
	if mode == media.SaveAsNew {
		result, err = s.saveTransformedCopy(ctx, src, out, req.Operations)
	} else {
		result, err = s.replaceWithTransformed(ctx, src, data, out, req.Operations)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Media transformed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("source_id", src.ID.String()),
		zap.String("media_id", result.ID.String()),
		zap.String("save_as", string(mode)))
	resp := ToMediaResponse(result)
	return &resp, nil
}

func (s *MediaService) saveTransformedCopy(ctx context.Context, src *media.Media, out *Image, ops []media.Operation) (*media.Media, error) {
	collection, err := media.ResolveCollection(src.Collection)
	if err != nil {
		return nil, err
	}
	props := make(map[string]any, len(src.CustomProperties)+1)
	for k, v := range src.CustomProperties {
		props[k] = v
	}
	props["transformed_from"] = src.ID.String()

	return s.store(ctx, out.Data, media.NewMediaParams{
		TenantID:         src.TenantID,
		Collection:       collection,
		Name:             truncateName(src.Name, "-edited"),
		FileName:         src.FileName,
		MimeType:         out.MimeType,
		Source:           src.Source,
		SourceURL:        src.SourceURL,
		CustomProperties: props,
		ModelType:        src.ModelType,
		ModelID:          src.ModelID,
	}, func(m *media.Media) { m.MarkTransformed(src.ID, ops, media.SaveAsNew) })
}

func (s *MediaService) replaceWithTransformed(ctx context.Context, m *media.Media, original []byte, out *Image, ops []media.Operation) (*media.Media, error) {
	before := m.TotalBytes()

	var thumb *Image
	if t, err := s.processor.Thumbnail(out.Data, s.opts.ThumbSize); err != nil {
		s.logger.Warn("Thumbnail generation failed",
			zap.String("media_id", m.ID.String()),
			zap.Error(err))
	} else {
		thumb = t
	}

	// the row still describes the old content until Save succeeds, so any
	// failure after the first overwrite puts the old bytes back
	oldMime := m.MimeType
	thumbKey := m.ConversionKey(media.ThumbConversion)
	var oldThumb *media.Conversion
	var oldThumbData []byte
	if c, ok := m.Conversions[media.ThumbConversion]; ok && thumb != nil {
		data, err := s.readObject(ctx, c.Key)
		if err != nil {
			s.logger.Warn("Keeping previous thumbnail",
				zap.String("media_id", m.ID.String()),
				zap.Error(err))
			thumb = nil
		} else {
			oldThumb, oldThumbData = &c, data
		}
	}

	after := int64(len(out.Data))
	if thumb != nil {
		after += int64(len(thumb.Data))
	} else if c, ok := m.Conversions[media.ThumbConversion]; ok {
		after += c.Size
	}
	delta := after - before
	if delta > 0 {
		if err := s.quota.ConsumeStorage(ctx, m.TenantID, delta); err != nil {
			return nil, err
		}
	}
	refund := func() {
		if delta <= 0 {
			return
		}
		if err := s.quota.ReleaseStorage(ctx, m.TenantID, delta); err != nil {
			s.logger.Warn("Failed to refund storage",
				zap.String("media_id", m.ID.String()),
				zap.Int64("bytes", delta),
				zap.Error(err))
		}
	}

	wroteThumb := false
	restore := func() {
		ctx := context.WithoutCancel(ctx)
		if err := s.storage.Put(ctx, m.StorageKey, bytes.NewReader(original), int64(len(original)), oldMime); err != nil {
			s.logger.Error("Failed to restore original after replace",
				zap.String("media_id", m.ID.String()),
				zap.String("key", m.StorageKey),
				zap.Error(err))
		}
		if wroteThumb && (oldThumb == nil || oldThumb.Key != thumbKey) {
			if err := s.storage.Delete(ctx, thumbKey); err != nil {
				s.logger.Warn("Failed to remove regenerated thumbnail",
					zap.String("media_id", m.ID.String()),
					zap.Error(err))
			}
		}
		if oldThumb == nil {
			return
		}
		if err := s.storage.Put(ctx, oldThumb.Key, bytes.NewReader(oldThumbData), int64(len(oldThumbData)), oldThumb.MimeType); err != nil {
			s.logger.Warn("Failed to restore thumbnail after replace",
				zap.String("media_id", m.ID.String()),
				zap.Error(err))
		}
	}

	if err := s.storage.Put(ctx, m.StorageKey, bytes.NewReader(out.Data), int64(len(out.Data)), out.MimeType); err != nil {
		refund()
		return nil, err
	}
	if thumb != nil {
		if err := s.storage.Put(ctx, thumbKey, bytes.NewReader(thumb.Data), int64(len(thumb.Data)), thumb.MimeType); err != nil {
			s.logger.Warn("Failed to store regenerated thumbnail",
				zap.String("media_id", m.ID.String()),
				zap.Error(err))
		} else {
			wroteThumb = true
			m.SetConversion(media.ThumbConversion, conversionOf(thumbKey, thumb))
		}
	}

	if err := m.ReplaceContent(out.MimeType, int64(len(out.Data)), out.Width, out.Height); err != nil {
		restore()
		refund()
		return nil, err
	}
	m.MarkTransformed(m.ID, ops, media.SaveAsReplace)
	if err := s.repo.Save(ctx, m); err != nil {
		restore()
		refund()
		return nil, err
	}
	if delta < 0 {
		if err := s.quota.ReleaseStorage(ctx, m.TenantID, -delta); err != nil {
			s.logger.Warn("Failed to release storage", zap.Error(err))
		}
	}
	s.publish(ctx, m)
	return m, nil
}

// URL returns a time-limited link to the original or to a conversion
func (s *MediaService) URL(ctx context.Context, tenantID, id uuid.UUID, conversion string, ttl time.Duration) (*URLResponse, error) {
	m, err := s.repo.FindByIDForTenant(ctx, tenantID, id, false)
	if err != nil {
		return nil, err
	}
	key, err := objectKey(m, conversion)
	if err != nil {
		return nil, err
	}
	switch {
	case ttl <= 0:
		ttl = s.opts.URLTTL
	case ttl > MaxURLTTL:
		return nil, shared.InvalidInput("link lifetime cannot exceed %s", MaxURLTTL)
	}
	url, expires, err := s.storage.URL(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return &URLResponse{URL: url, ExpiresAt: expires}, nil
}

// Download opens the original or a conversion for streaming
func (s *MediaService) Download(ctx context.Context, tenantID, id uuid.UUID, conversion string) (*Download, error) {
	m, err := s.repo.FindByIDForTenant(ctx, tenantID, id, false)
	if err != nil {
		return nil, err
	}
	key, err := objectKey(m, conversion)
	if err != nil {
		return nil, err
	}
	body, info, err := s.storage.Get(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, shared.NotFound("stored file")
	}
	if err != nil {
		return nil, err
	}
	d := &Download{Body: body, FileName: m.FileName, MimeType: m.MimeType, Size: info.Size}
	if conversion != "" {
		c := m.Conversions[conversion]
		d.MimeType = c.MimeType
		d.FileName = strings.TrimSuffix(m.FileName, extOf(m.FileName)) + "-" + conversion + ".jpg"
	}
	return d, nil
}

func objectKey(m *media.Media, conversion string) (string, error) {
	if conversion == "" {
		return m.StorageKey, nil
	}
	c, ok := m.Conversions[conversion]
	if !ok || c.Key == "" {
		return "", shared.NotFound("conversion " + conversion)
	}
	return c.Key, nil
}

func (s *MediaService) readObject(ctx context.Context, key string) ([]byte, error) {
	body, _, err := s.storage.Get(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, shared.NotFound("stored file")
	}
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(io.LimitReader(body, s.opts.MaxSize+1))
}

func (s *MediaService) deleteObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to delete object", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *MediaService) tooLarge() *shared.DomainError {
	return shared.InvalidInput("file exceeds the maximum size of %d bytes", s.opts.MaxSize).
		WithDetail("max_size", s.opts.MaxSize)
}

func (s *MediaService) publish(ctx context.Context, m *media.Media) {
	if err := shared.PublishPending(ctx, s.publisher, m); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Failed to publish media events",
			zap.String("media_id", m.ID.String()),
			zap.Error(err))
	}
}

func conversionOf(key string, img *Image) media.Conversion {
	return media.Conversion{
		Key:      key,
		MimeType: img.MimeType,
		Size:     int64(len(img.Data)),
		Width:    img.Width,
		Height:   img.Height,
	}
}

func truncateName(name, suffix string) string {
	r := []rune(name)
	if max := 255 - len([]rune(suffix)); len(r) > max {
		r = r[:max]
	}
	return string(r) + suffix
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
