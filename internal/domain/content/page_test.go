package content

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stripScripts struct{}

func (stripScripts) Sanitize(html string) string {
	return strings.ReplaceAll(html, "<script>alert(1)</script>", "")
}

func TestNewPage(t *testing.T) {
	p, err := NewPage(uuid.New(), PageInput{
		Title: "Quiénes Somos",
		Body:  "<h1>Hola</h1><script>alert(1)</script><p>Somos   una <b>panadería</b>.</p>",
	}, stripScripts{})
	require.NoError(t, err)

	assert.Equal(t, "quienes-somos", p.Slug)
	assert.NotContains(t, p.Body, "script")
	assert.Equal(t, "Hola Somos una panadería .", p.Excerpt)
	assert.Equal(t, DefaultTemplate, p.Template)
	assert.Equal(t, PageDraft, p.Status)
	assert.False(t, p.IsPublic())

	_, err = NewPage(uuid.New(), PageInput{Title: ""}, nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewPage(uuid.New(), PageInput{Title: "x", Template: "Bad Template"}, nil)
	assert.Error(t, err)
}

func TestPage_ExcerptTruncates(t *testing.T) {
	p, err := NewPage(uuid.New(), PageInput{Title: "Long", Body: strings.Repeat("palabra ", 100)}, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(p.Excerpt)), maxExcerpt)
	assert.True(t, strings.HasSuffix(p.Excerpt, "…"))
}

func TestPage_PublishLifecycle(t *testing.T) {
	p, err := NewPage(uuid.New(), PageInput{Title: "Contacto"}, nil)
	require.NoError(t, err)
	now := time.Now()

	require.NoError(t, p.Publish(now))
	assert.True(t, p.IsPublic())
	first := *p.PublishedAt
	assert.True(t, errors.Is(p.Publish(now), shared.ErrInvalidState))

	require.NoError(t, p.Unpublish())
	assert.True(t, errors.Is(p.Unpublish(), shared.ErrInvalidState))

	require.NoError(t, p.Publish(now.Add(time.Hour)))
	assert.Equal(t, first, *p.PublishedAt, "first publication date is kept")
}
