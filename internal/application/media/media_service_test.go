package media_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	mediaapp "github.com/backoffice/saas/internal/application/media"
	tenantapp "github.com/backoffice/saas/internal/application/tenant"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/imaging"
	"github.com/backoffice/saas/internal/infrastructure/persistence"
	"github.com/backoffice/saas/internal/infrastructure/persistence/persistencetest"
	"github.com/backoffice/saas/internal/infrastructure/storage"
)

type countingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *countingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *countingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

type stubFetcher struct {
	file *mediaapp.FetchedFile
	err  error
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) (*mediaapp.FetchedFile, error) {
	return f.file, f.err
}

// flakyRepo fails Save while err is set
type flakyRepo struct {
	media.Repository
	err error
}

func (r *flakyRepo) Save(ctx context.Context, m *media.Media) error {
	if r.err != nil {
		return r.err
	}
	return r.Repository.Save(ctx, m)
}

type fixture struct {
	svc     *mediaapp.MediaService
	repos   *persistence.Repositories
	repo    *flakyRepo
	storage *storage.MemoryObjectStorage
	fetcher *stubFetcher
	pub     *countingPublisher
	tenant  *tenant.Tenant
}

func newFixture(t *testing.T, opts mediaapp.Options) *fixture {
	t.Helper()
	repos := persistence.NewRepositories(persistencetest.NewDB(t))
	tn, err := tenant.NewTenant("Acme Store", "owner@acme.test", tenant.DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, repos.Tenants.Save(context.Background(), tn))

	logger := zaptest.NewLogger(t)
	store := storage.NewMemoryObjectStorage()
	fetcher := &stubFetcher{}
	pub := &countingPublisher{}
	repo := &flakyRepo{Repository: repos.Media}
	svc := mediaapp.NewMediaService(mediaapp.MediaServiceConfig{
		Repo:      repo,
		Storage:   store,
		Processor: imaging.NewProcessor(0),
		Fetcher:   fetcher,
		Quota:     tenantapp.NewTenantService(repos.Tenants, nil, logger),
		Tenants:   repos.Tenants,
		Publisher: pub,
		Logger:    logger,
		Options:   opts,
	})
	return &fixture{svc: svc, repos: repos, repo: repo, storage: store, fetcher: fetcher, pub: pub, tenant: tn}
}

func (f *fixture) storageUsed(t *testing.T) int64 {
	t.Helper()
	tn, err := f.repos.Tenants.FindByID(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	return tn.StorageUsedBytes
}

func (f *fixture) objects(t *testing.T) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	for _, key := range f.storage.Keys() {
		body, _, err := f.storage.Get(context.Background(), key)
		require.NoError(t, err)
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		require.NoError(t, body.Close())
		out[key] = data
	}
	return out
}

func (f *fixture) upload(t *testing.T, collection, fileName string, data []byte) *mediaapp.MediaResponse {
	t.Helper()
	resp, err := f.svc.Upload(context.Background(), f.tenant.ID, mediaapp.UploadInput{
		Collection:   collection,
		FileName:     fileName,
		Content:      bytes.NewReader(data),
		DeclaredSize: int64(len(data)),
	})
	require.NoError(t, err)
	return resp
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 5), G: 120, B: uint8(y * 5), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMediaService_UploadImage(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	data := pngBytes(t, 40, 20)

	resp := f.upload(t, "products", "Photo One.PNG", data)

	assert.Equal(t, "image/png", resp.MimeType)
	assert.Equal(t, "Photo-One.png", resp.FileName)
	assert.Equal(t, "Photo-One", resp.Name)
	assert.Equal(t, 40, resp.Width)
	assert.Equal(t, 20, resp.Height)
	assert.Equal(t, int64(len(data)), resp.Size)
	require.Contains(t, resp.Conversions, media.ThumbConversion)
	assert.Equal(t, "image/jpeg", resp.Conversions[media.ThumbConversion].MimeType)
	assert.Len(t, f.storage.Keys(), 2)

	expected := resp.Size + resp.Conversions[media.ThumbConversion].Size
	assert.Equal(t, expected, f.storageUsed(t))
	assert.Equal(t, 1, f.pub.count(media.EventTypeMediaUploaded))
}

func TestMediaService_UploadDocument(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})

	resp := f.upload(t, "", "notes", []byte("plain text notes"))

	assert.Equal(t, media.CollectionDefault, resp.Collection)
	assert.Equal(t, "text/plain", resp.MimeType)
	assert.Equal(t, "notes.txt", resp.FileName)
	assert.Empty(t, resp.Conversions)
	assert.Len(t, f.storage.Keys(), 1)
}

func TestMediaService_UploadRejected(t *testing.T) {
	f := newFixture(t, mediaapp.Options{MaxSize: 1024})
	ctx := context.Background()

	tests := []struct {
		name string
		in   mediaapp.UploadInput
	}{
		{
			name: "declared too large",
			in:   mediaapp.UploadInput{FileName: "a.txt", Content: strings.NewReader("x"), DeclaredSize: 4096},
		},
		{
			name: "content too large",
			in:   mediaapp.UploadInput{FileName: "a.txt", Content: bytes.NewReader(bytes.Repeat([]byte("a"), 2048)), DeclaredSize: -1},
		},
		{
			name: "empty",
			in:   mediaapp.UploadInput{FileName: "a.txt", Content: strings.NewReader(""), DeclaredSize: -1},
		},
		{
			name: "type not accepted by collection",
			in:   mediaapp.UploadInput{Collection: "products", FileName: "a.txt", Content: strings.NewReader("not an image"), DeclaredSize: -1},
		},
		{
			name: "malformed collection",
			in:   mediaapp.UploadInput{Collection: "../etc", FileName: "a.txt", Content: strings.NewReader("x"), DeclaredSize: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(ctx, f.tenant.ID, tt.in)
			assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
		})
	}
	assert.Empty(t, f.storage.Keys())
	assert.Zero(t, f.storageUsed(t))
}

func TestMediaService_UploadQuotaExceeded(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	require.NoError(t, f.repos.Tenants.AdjustStorageUsed(ctx, f.tenant.ID, f.tenant.StorageQuotaBytes-10))

	_, err := f.svc.Upload(ctx, f.tenant.ID, mediaapp.UploadInput{
		FileName:     "big.txt",
		Content:      strings.NewReader("more than ten bytes of text"),
		DeclaredSize: -1,
	})

	assert.True(t, errors.Is(err, shared.ErrQuotaExceeded))
	assert.Empty(t, f.storage.Keys())
	assert.Equal(t, f.tenant.StorageQuotaBytes-10, f.storageUsed(t))
}

func TestMediaService_SingleFileCollection(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()

	first := f.upload(t, media.CollectionAvatars, "me.png", pngBytes(t, 8, 8))
	second := f.upload(t, media.CollectionAvatars, "me2.png", pngBytes(t, 10, 10))

	old, err := f.svc.Get(ctx, f.tenant.ID, first.ID, true)
	require.NoError(t, err)
	assert.True(t, old.Trashed)

	live, total, err := f.svc.List(ctx, f.tenant.ID, mediaapp.MediaListFilter{Collection: media.CollectionAvatars})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, live, 1)
	assert.Equal(t, second.ID, live[0].ID)

	_, err = f.svc.Restore(ctx, f.tenant.ID, first.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestMediaService_TrashLifecycle(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	item := f.upload(t, "", "doc.txt", []byte("some document"))

	require.NoError(t, f.svc.SoftDelete(ctx, f.tenant.ID, item.ID))
	_, err := f.svc.Get(ctx, f.tenant.ID, item.ID, false)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.True(t, errors.Is(f.svc.SoftDelete(ctx, f.tenant.ID, item.ID), shared.ErrInvalidState))

	trashed, total, err := f.svc.List(ctx, f.tenant.ID, mediaapp.MediaListFilter{Trashed: "only"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, trashed, 1)
	assert.Equal(t, int64(len("some document")), f.storageUsed(t))

	restored, err := f.svc.Restore(ctx, f.tenant.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, restored.Trashed)
	assert.Equal(t, 1, f.pub.count(media.EventTypeMediaTrashed))
	assert.Equal(t, 1, f.pub.count(media.EventTypeMediaRestored))
}

func TestMediaService_ForceDelete(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	item := f.upload(t, "products", "p.png", pngBytes(t, 16, 16))
	require.NotZero(t, f.storageUsed(t))

	require.NoError(t, f.svc.ForceDelete(ctx, f.tenant.ID, item.ID))

	assert.Empty(t, f.storage.Keys())
	assert.Zero(t, f.storageUsed(t))
	_, err := f.svc.Get(ctx, f.tenant.ID, item.ID, true)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.Equal(t, 1, f.pub.count(media.EventTypeMediaDeleted))
}

func TestMediaService_EmptyTrash(t *testing.T) {
	f := newFixture(t, mediaapp.Options{BatchLimit: 1})
	ctx := context.Background()
	keep := f.upload(t, "", "keep.txt", []byte("keep me"))
	for _, name := range []string{"a.txt", "b.txt"} {
		item := f.upload(t, "", name, []byte("trash "+name))
		require.NoError(t, f.svc.SoftDelete(ctx, f.tenant.ID, item.ID))
	}
	time.Sleep(20 * time.Millisecond)

	result, err := f.svc.EmptyTrashAll(ctx, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tenants)
	assert.Equal(t, 2, result.Deleted)
	assert.Zero(t, result.Failed)

	assert.Len(t, f.storage.Keys(), 1)
	assert.Equal(t, int64(len("keep me")), f.storageUsed(t))
	_, err = f.svc.Get(ctx, f.tenant.ID, keep.ID, false)
	assert.NoError(t, err)
}

func TestMediaService_EmptyTrashKeepsRecentItems(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	item := f.upload(t, "", "a.txt", []byte("recent"))
	require.NoError(t, f.svc.SoftDelete(ctx, f.tenant.ID, item.ID))

	result, err := f.svc.EmptyTrash(ctx, f.tenant.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, result.Deleted)
	assert.Len(t, f.storage.Keys(), 1)
}

func TestMediaService_ImportFromURL(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	f.fetcher.file = &mediaapp.FetchedFile{
		Data:     pngBytes(t, 12, 6),
		FileName: "remote.png",
		Diagnostics: media.FetchDiagnostics{
			URL:        "https://cdn.example.test/remote.png",
			StatusCode: 200,
			Attempts:   1,
			TotalMs:    12.5,
		},
	}

	resp, err := f.svc.ImportFromURL(ctx, f.tenant.ID, mediaapp.ImportMediaRequest{
		URL:        "https://cdn.example.test/remote.png",
		Collection: "banners_covers",
	})
	require.NoError(t, err)
	assert.Equal(t, "url", resp.Source)
	assert.Equal(t, "https://cdn.example.test/remote.png", resp.SourceURL)
	require.NotNil(t, resp.Diagnostics)
	assert.Equal(t, 200, resp.Diagnostics.StatusCode)
	assert.Equal(t, 12, resp.Width)
}

func TestMediaService_ImportFromURLFailure(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	diag := media.FetchDiagnostics{URL: "https://cdn.example.test/missing.png", StatusCode: 404, Attempts: 1}
	f.fetcher.err = &mediaapp.FetchError{Diagnostics: diag, Permanent: true, Err: errors.New("status 404")}

	_, err := f.svc.ImportFromURL(context.Background(), f.tenant.ID, mediaapp.ImportMediaRequest{URL: diag.URL})
	require.Error(t, err)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, shared.CodeInvalidInput, de.Code)
	assert.Equal(t, diag, de.Details["diagnostics"])
	assert.Empty(t, f.storage.Keys())
}

func TestMediaService_TransformAsNew(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	src := f.upload(t, "products", "shoe.png", pngBytes(t, 40, 20))

	edited, err := f.svc.Transform(ctx, f.tenant.ID, src.ID, mediaapp.TransformMediaRequest{
		Operations: []media.Operation{{Type: media.OpRotate, Degrees: 90}},
	})
	require.NoError(t, err)

	assert.NotEqual(t, src.ID, edited.ID)
	assert.Equal(t, 20, edited.Width)
	assert.Equal(t, 40, edited.Height)
	assert.Equal(t, "shoe-edited", edited.Name)
	assert.Equal(t, src.ID.String(), edited.CustomProperties["transformed_from"])
	assert.Len(t, f.storage.Keys(), 4)

	original, err := f.svc.Get(ctx, f.tenant.ID, src.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 40, original.Width)
	assert.Equal(t, 1, f.pub.count(media.EventTypeMediaTransformed))
}

func TestMediaService_TransformReplace(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	src := f.upload(t, "products", "shoe.png", pngBytes(t, 40, 20))

	replaced, err := f.svc.Transform(ctx, f.tenant.ID, src.ID, mediaapp.TransformMediaRequest{
		Operations: []media.Operation{{Type: media.OpResize, Width: 10, Height: 5, Mode: media.ResizeExact}},
		SaveAs:     "replace",
	})
	require.NoError(t, err)

	assert.Equal(t, src.ID, replaced.ID)
	assert.Equal(t, 10, replaced.Width)
	assert.Equal(t, 5, replaced.Height)
	assert.Greater(t, replaced.Version, src.Version)
	assert.Len(t, f.storage.Keys(), 2)
	assert.Equal(t, replaced.Size+replaced.Conversions[media.ThumbConversion].Size, f.storageUsed(t))
}

func TestMediaService_TransformReplaceRestoresOnSaveFailure(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	src := f.upload(t, "products", "shoe.png", pngBytes(t, 40, 20))
	stored := f.objects(t)
	used := f.storageUsed(t)

	f.repo.err = errors.New("database is locked")
	_, err := f.svc.Transform(ctx, f.tenant.ID, src.ID, mediaapp.TransformMediaRequest{
		Operations: []media.Operation{{Type: media.OpResize, Width: 80, Height: 80, Mode: media.ResizeExact}},
		SaveAs:     "replace",
	})
	require.ErrorIs(t, err, f.repo.err)

	assert.Equal(t, stored, f.objects(t), "original and thumbnail bytes are put back")
	assert.Equal(t, used, f.storageUsed(t), "consumed storage is refunded")
	assert.Zero(t, f.pub.count(media.EventTypeMediaTransformed))

	f.repo.err = nil
	current, err := f.svc.Get(ctx, f.tenant.ID, src.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 40, current.Width)
	assert.Equal(t, src.Version, current.Version)
}

func TestMediaService_TransformRejected(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	doc := f.upload(t, "", "doc.txt", []byte("text"))
	img := f.upload(t, "", "img.png", pngBytes(t, 4, 4))

	_, err := f.svc.Transform(ctx, f.tenant.ID, doc.ID, mediaapp.TransformMediaRequest{
		Operations: []media.Operation{{Type: media.OpFlip, Direction: "horizontal"}},
	})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	_, err = f.svc.Transform(ctx, f.tenant.ID, img.ID, mediaapp.TransformMediaRequest{
		Operations: []media.Operation{{Type: media.OpFlip, Direction: "diagonal"}},
	})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	_, err = f.svc.Transform(ctx, f.tenant.ID, uuid.New(), mediaapp.TransformMediaRequest{
		Operations: []media.Operation{{Type: media.OpFlip, Direction: "vertical"}},
	})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestMediaService_URLAndDownload(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	data := []byte("downloadable")
	item := f.upload(t, "", "d.txt", data)

	link, err := f.svc.URL(ctx, f.tenant.ID, item.ID, "", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "https://storage.example.com/tenants/"))
	assert.WithinDuration(t, time.Now().Add(mediaapp.DefaultURLTTL), link.ExpiresAt, time.Minute)

	_, err = f.svc.URL(ctx, f.tenant.ID, item.ID, "", 8*24*time.Hour)
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
	_, err = f.svc.URL(ctx, f.tenant.ID, item.ID, media.ThumbConversion, 0)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	dl, err := f.svc.Download(ctx, f.tenant.ID, item.ID, "")
	require.NoError(t, err)
	defer dl.Body.Close()
	got, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "d.txt", dl.FileName)
}

func TestMediaService_UpdateAndIsolation(t *testing.T) {
	f := newFixture(t, mediaapp.Options{})
	ctx := context.Background()
	item := f.upload(t, "", "a.txt", []byte("a"))

	name := "Renamed"
	order := 3
	updated, err := f.svc.UpdateProperties(ctx, f.tenant.ID, item.ID, mediaapp.UpdateMediaRequest{
		Name:             &name,
		CustomProperties: map[string]any{"alt": "An item"},
		OrderColumn:      &order,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 3, updated.OrderColumn)
	assert.Equal(t, "An item", updated.CustomProperties["alt"])

	_, err = f.svc.Get(ctx, uuid.New(), item.ID, true)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}
