package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/backoffice/saas/internal/domain/content"
	"github.com/backoffice/saas/internal/domain/seo"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passthrough struct{}

func (passthrough) Sanitize(html string) string { return html }

func TestGormPageRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPageRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	about, err := content.NewPage(tenantID, content.PageInput{Title: "Quiénes somos", Body: "<p>Hola</p>"}, passthrough{})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, about))
	terms, err := content.NewPage(tenantID, content.PageInput{Title: "Términos"}, passthrough{})
	require.NoError(t, err)
	require.NoError(t, terms.Publish(time.Now()))
	require.NoError(t, repo.Save(ctx, terms))

	found, err := repo.FindBySlug(ctx, tenantID, "quienes-somos")
	require.NoError(t, err)
	assert.Equal(t, about.ID, found.ID)
	assert.Equal(t, content.PageDraft, found.Status)

	published, err := repo.FindPublished(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, terms.ID, published[0].ID)

	_, total, err := repo.FindAllForTenant(ctx, tenantID, content.PageDraft, shared.Filter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	exists, err := repo.ExistsBySlug(ctx, tenantID, "quienes-somos", &about.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Delete(ctx, tenantID, about.ID))
	_, err = repo.FindByIDForTenant(ctx, tenantID, about.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	exists, err = repo.ExistsBySlug(ctx, tenantID, "quienes-somos", nil)
	require.NoError(t, err)
	assert.False(t, exists, "deleted pages free their slug")
}

func TestGormSeoRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSeoRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	home, err := seo.NewSubject(seo.SubjectHome, nil)
	require.NoError(t, err)
	pageID := uuid.New()
	page, err := seo.NewSubject(seo.SubjectPage, &pageID)
	require.NoError(t, err)

	homeMeta, err := seo.NewSeoMeta(tenantID, home, seo.MetaInput{MetaTitle: "Panadería Lucía", Keywords: []string{"Pan", "pan", "Tortas"}})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, homeMeta))
	hidden := seo.Robots{Index: false, Follow: true}
	pageMeta, err := seo.NewSeoMeta(tenantID, page, seo.MetaInput{MetaTitle: "Privado", Robots: &hidden})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, pageMeta))

	t.Run("home is keyed without an id", func(t *testing.T) {
		found, err := repo.FindBySubject(ctx, tenantID, home)
		require.NoError(t, err)
		assert.Nil(t, found.Subject.ID)
		assert.Equal(t, []string{"pan", "tortas"}, found.Keywords)
		assert.True(t, found.Robots.Index)
	})

	t.Run("noindex subjects", func(t *testing.T) {
		subjects, err := repo.FindNoIndex(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, subjects, 1)
		assert.Equal(t, page.String(), subjects[0].String())
	})

	t.Run("lists by subject type", func(t *testing.T) {
		_, total, err := repo.FindAllForTenant(ctx, tenantID, seo.SubjectPage, shared.Filter{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("delete by subject", func(t *testing.T) {
		require.NoError(t, repo.DeleteBySubject(ctx, tenantID, page))
		_, err := repo.FindBySubject(ctx, tenantID, page)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		assert.NoError(t, repo.DeleteBySubject(ctx, tenantID, page))
	})
}
