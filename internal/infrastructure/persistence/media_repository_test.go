package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMedia(t *testing.T, tenantID uuid.UUID, collection, fileName, mimeType string, size int64) *media.Media {
	t.Helper()
	c, err := media.ResolveCollection(collection)
	require.NoError(t, err)
	m, err := media.NewMedia(media.NewMediaParams{
		TenantID:   tenantID,
		Collection: c,
		FileName:   fileName,
		MimeType:   mimeType,
		Size:       size,
	})
	require.NoError(t, err)
	return m
}

func TestGormMediaRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMediaRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	logo := newTestMedia(t, tenantID, media.CollectionDefault, "logo.png", media.MimePNG, 100)
	logo.SetConversion(media.ThumbConversion, media.Conversion{Key: logo.ConversionKey(media.ThumbConversion), MimeType: media.MimePNG, Size: 10})
	photo := newTestMedia(t, tenantID, media.CollectionDefault, "photo.jpg", media.MimeJPEG, 300)
	doc := newTestMedia(t, tenantID, media.CollectionDocuments, "contract.pdf", media.MimePDF, 50)
	for _, m := range []*media.Media{logo, photo, doc} {
		require.NoError(t, repo.Save(ctx, m))
	}

	t.Run("round-trips conversions and properties", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, tenantID, logo.ID, false)
		require.NoError(t, err)
		require.Contains(t, found.Conversions, media.ThumbConversion)
		assert.Equal(t, int64(10), found.Conversions[media.ThumbConversion].Size)
		assert.NotNil(t, found.CustomProperties)
		assert.Nil(t, found.Diagnostics)
	})

	t.Run("filters by mime prefix", func(t *testing.T) {
		items, total, err := repo.List(ctx, tenantID, media.ListQuery{
			MimePrefix: "image/",
			Filter:     shared.Filter{Page: 1, PageSize: 10},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, items, 2)
	})

	t.Run("trash scopes", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, tenantID, photo.ID, false)
		require.NoError(t, err)
		require.NoError(t, found.Trash(time.Now().UTC().Add(-48*time.Hour)))
		require.NoError(t, repo.Save(ctx, found))

		_, err = repo.FindByIDForTenant(ctx, tenantID, photo.ID, false)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		_, err = repo.FindByIDForTenant(ctx, tenantID, photo.ID, true)
		assert.NoError(t, err)

		cases := map[media.TrashedScope]int64{
			media.TrashedWithout: 2,
			media.TrashedWith:    3,
			media.TrashedOnly:    1,
		}
		for scope, want := range cases {
			_, total, err := repo.List(ctx, tenantID, media.ListQuery{Trashed: scope, Filter: shared.Filter{Page: 1, PageSize: 10}})
			require.NoError(t, err)
			assert.Equal(t, want, total, scope)
		}

		old, err := repo.FindTrashedBefore(ctx, tenantID, time.Now().UTC().Add(-24*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, old, 1)
		assert.Equal(t, photo.ID, old[0].ID)
	})

	t.Run("usage", func(t *testing.T) {
		u, err := repo.Usage(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), u.LiveCount)
		assert.Equal(t, int64(1), u.TrashedCount)
		assert.Equal(t, int64(450), u.Bytes)
	})

	t.Run("find by ids skips trashed", func(t *testing.T) {
		items, err := repo.FindByIDs(ctx, tenantID, []uuid.UUID{logo.ID, photo.ID})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, logo.ID, items[0].ID)
	})

	t.Run("collection listing", func(t *testing.T) {
		items, err := repo.FindLiveInCollection(ctx, tenantID, media.CollectionDocuments)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("hard delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, tenantID, doc.ID))
		_, err := repo.FindByIDForTenant(ctx, tenantID, doc.ID, true)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		assert.True(t, errors.Is(repo.Delete(ctx, tenantID, doc.ID), shared.ErrNotFound))
	})
}
