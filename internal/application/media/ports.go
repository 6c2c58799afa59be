package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/backoffice/saas/internal/domain/media"
	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by ObjectStorage when a key does not exist
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ObjectStorage stores media bytes under opaque keys
type ObjectStorage interface {
	// Disk names the backend, recorded on each media row
	Disk() media.Disk
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get returns ErrObjectNotFound for a missing key
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete treats a missing key as success
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns a time-limited link to the object
	URL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}

// Image is an encoded raster produced by an ImageProcessor
type Image struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// ImageProcessor decodes, edits and re-encodes images
type ImageProcessor interface {
	// Dimensions reads the pixel size without a full decode
	Dimensions(data []byte) (width, height int, err error)
	// Transform applies ops in order and re-encodes in the source format
	Transform(data []byte, mimeType string, ops []media.Operation) (*Image, error)
	// Thumbnail fits the image inside a size x size box as jpeg
	Thumbnail(data []byte, size int) (*Image, error)
}

// FetchedFile is the body of a remote URL import
type FetchedFile struct {
	Data        []byte
	FileName    string
	Diagnostics media.FetchDiagnostics
}

// Fetcher downloads a remote file for import
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchedFile, error)
}

// FetchError reports a failed import together with what was measured
type FetchError struct {
	Diagnostics media.FetchDiagnostics
	// Permanent errors (4xx, blocked host, too large) are not retried
	Permanent bool
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Diagnostics.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageQuota accounts the bytes a tenant keeps in the library
type StorageQuota interface {
	// ConsumeStorage fails with QUOTA_EXCEEDED when bytes do not fit
	ConsumeStorage(ctx context.Context, tenantID uuid.UUID, bytes int64) error
	ReleaseStorage(ctx context.Context, tenantID uuid.UUID, bytes int64) error
}

// TenantLister enumerates the tenants whose trash is emptied
type TenantLister interface {
	FindIDs(ctx context.Context) ([]uuid.UUID, error)
}
