package content

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/infrastructure/persistence"
	"github.com/backoffice/saas/internal/infrastructure/persistence/persistencetest"
	"github.com/backoffice/saas/internal/infrastructure/sanitizer"
)

func newService(t *testing.T) (*PageService, *persistence.Repositories) {
	t.Helper()
	repos := persistence.NewRepositories(persistencetest.NewDB(t))
	return NewPageService(repos.Pages, repos.Media, sanitizer.New(), zaptest.NewLogger(t)), repos
}

func TestPageService_CreateSanitizesAndDerives(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	page, err := svc.Create(ctx, tenantID, PageRequest{
		Title: "Sobre Nosotros",
		Body:  `<h2>Historia</h2><p onclick="x()">Fundada en <strong>1998</strong>.</p><script>alert(1)</script>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "sobre-nosotros", page.Slug)
	assert.Equal(t, "draft", page.Status)
	assert.Equal(t, "default", page.Template)
	assert.NotContains(t, page.Body, "script")
	assert.NotContains(t, page.Body, "onclick")
	assert.Contains(t, page.Body, "<strong>1998</strong>")
	assert.Equal(t, "Historia Fundada en 1998 .", page.Excerpt)

	again, err := svc.Create(ctx, tenantID, PageRequest{Title: "Sobre nosotros"})
	require.NoError(t, err)
	assert.Equal(t, "sobre-nosotros-2", again.Slug)

	_, err = svc.Create(ctx, tenantID, PageRequest{Title: "Otra", Slug: "sobre-nosotros"})
	assert.Equal(t, shared.CodeAlreadyExists, shared.ErrorCode(err))

	other, err := svc.Create(ctx, uuid.New(), PageRequest{Title: "Sobre nosotros"})
	require.NoError(t, err)
	assert.Equal(t, "sobre-nosotros", other.Slug, "slugs are unique per tenant")
}

func TestPageService_UpdateKeepsSlugUnlessGiven(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	tenantID := uuid.New()
	page, err := svc.Create(ctx, tenantID, PageRequest{Title: "Contacto"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, tenantID, PageRequest{Title: "Envios"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, tenantID, page.ID, PageRequest{Title: "Contáctanos", Body: "<p>Escríbenos</p>"})
	require.NoError(t, err)
	assert.Equal(t, "contacto", updated.Slug)
	assert.Equal(t, "Contáctanos", updated.Title)

	_, err = svc.Update(ctx, tenantID, page.ID, PageRequest{Title: "Contacto", Slug: "envios"})
	assert.Equal(t, shared.CodeAlreadyExists, shared.ErrorCode(err))
}

func TestPageService_PublicationLifecycle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	tenantID := uuid.New()
	page, err := svc.Create(ctx, tenantID, PageRequest{Title: "Terminos", Body: "<p>Condiciones</p>"})
	require.NoError(t, err)

	_, err = svc.GetPublished(ctx, tenantID, "terminos")
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err), "drafts are not public")

	published, err := svc.Publish(ctx, tenantID, page.ID)
	require.NoError(t, err)
	assert.Equal(t, "published", published.Status)
	require.NotNil(t, published.PublishedAt)

	_, err = svc.Publish(ctx, tenantID, page.ID)
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))

	public, err := svc.GetPublished(ctx, tenantID, "terminos")
	require.NoError(t, err)
	assert.Equal(t, "Terminos", public.Title)

	listed, total, err := svc.List(ctx, tenantID, PageListFilter{Status: "published"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, page.ID, listed[0].ID)

	_, err = svc.Unpublish(ctx, tenantID, page.ID)
	require.NoError(t, err)
	_, err = svc.GetPublished(ctx, tenantID, "terminos")
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))

	byslug, err := svc.GetBySlug(ctx, tenantID, "terminos")
	require.NoError(t, err)
	assert.Equal(t, "draft", byslug.Status)

	require.NoError(t, svc.Delete(ctx, tenantID, page.ID))
	_, err = svc.GetByID(ctx, tenantID, page.ID)
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(svc.Delete(ctx, tenantID, page.ID)))
}

func TestPageService_CoverMustBeImage(t *testing.T) {
	svc, repos := newService(t)
	ctx := context.Background()
	tenantID := uuid.New()

	collection, err := media.ResolveCollection("pages")
	require.NoError(t, err)
	save := func(mime string) uuid.UUID {
		m, err := media.NewMedia(media.NewMediaParams{
			TenantID:   tenantID,
			Collection: collection,
			FileName:   "cover",
			MimeType:   mime,
			Size:       10,
		})
		require.NoError(t, err)
		require.NoError(t, repos.Media.Save(ctx, m))
		return m.ID
	}
	image := save("image/jpeg")
	doc := save("application/pdf")

	page, err := svc.Create(ctx, tenantID, PageRequest{Title: "Inicio", CoverMediaID: &image})
	require.NoError(t, err)
	assert.Equal(t, image, *page.CoverMediaID)

	_, err = svc.Create(ctx, tenantID, PageRequest{Title: "Manual", CoverMediaID: &doc})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	_, err = svc.Create(ctx, uuid.New(), PageRequest{Title: "Ajeno", CoverMediaID: &image})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err), "media of another tenant")
}

func TestPageService_LongBodyExcerpt(t *testing.T) {
	svc, _ := newService(t)
	page, err := svc.Create(context.Background(), uuid.New(), PageRequest{
		Title: "Blog",
		Body:  "<p>" + strings.Repeat("palabra ", 100) + "</p>",
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(page.Excerpt)), 300)
	assert.True(t, strings.HasSuffix(page.Excerpt, "…"))
}
