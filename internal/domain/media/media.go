package media

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// Source records how a file entered the library
type Source string

const (
	SourceUpload Source = "upload"
	SourceURL    Source = "url"
)

// Disk names the storage backend holding the object
type Disk string

const (
	DiskLocal Disk = "local"
	DiskS3    Disk = "s3"
)

// ThumbConversion is the name of the thumbnail generated for images
const ThumbConversion = "thumb"

const maxFileNameLength = 200

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Conversion is a derived rendition stored next to the original
type Conversion struct {
	Key      string `json:"key"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Media is a file in a tenant's library
type Media struct {
	shared.TenantAggregateRoot
	Collection       string
	ModelType        string
	ModelID          *uuid.UUID
	Name             string
	FileName         string
	MimeType         string
	Size             int64
	Disk             Disk
	StorageKey       string
	Width            int
	Height           int
	CustomProperties map[string]any
	OrderColumn      int
	Source           Source
	SourceURL        string
	Diagnostics      *FetchDiagnostics
	Conversions      map[string]Conversion
	DeletedAt        *time.Time
}

// NewMediaParams carries what is known about a file before it is stored
type NewMediaParams struct {
	TenantID         uuid.UUID
	Collection       Collection
	Name             string
	FileName         string
	MimeType         string
	Size             int64
	Disk             Disk
	Source           Source
	SourceURL        string
	Diagnostics      *FetchDiagnostics
	CustomProperties map[string]any
	ModelType        string
	ModelID          *uuid.UUID
}

// NewMedia validates params and assigns the storage key
func NewMedia(p NewMediaParams) (*Media, error) {
	if p.TenantID == uuid.Nil {
		return nil, shared.InvalidInput("tenant id is required")
	}
	mimeType := NormalizeMimeType(p.MimeType)
	if !p.Collection.Allows(mimeType) {
		return nil, shared.InvalidInput("type %s is not accepted in collection %s", mimeType, p.Collection.Name).
			WithDetail("mime_type", mimeType)
	}
	if p.Size <= 0 {
		return nil, shared.InvalidInput("file is empty")
	}
	fileName := SanitizeFileName(p.FileName, mimeType)
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = strings.TrimSuffix(fileName, path.Ext(fileName))
	}
	if utf8.RuneCountInString(name) > 255 {
		return nil, shared.InvalidInput("name cannot exceed 255 characters")
	}
	if p.Source == "" {
		p.Source = SourceUpload
	}
	if p.Disk == "" {
		p.Disk = DiskLocal
	}
	props := p.CustomProperties
	if props == nil {
		props = map[string]any{}
	}

	m := &Media{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(p.TenantID),
		Collection:          p.Collection.Name,
		ModelType:           p.ModelType,
		ModelID:             p.ModelID,
		Name:                name,
		FileName:            fileName,
		MimeType:            mimeType,
		Size:                p.Size,
		Disk:                p.Disk,
		CustomProperties:    props,
		Source:              p.Source,
		SourceURL:           p.SourceURL,
		Diagnostics:         p.Diagnostics,
		Conversions:         map[string]Conversion{},
	}
	m.StorageKey = StorageKeyFor(p.TenantID, m.Collection, m.ID, fileName)
	if err := ValidateStorageKey(m.StorageKey); err != nil {
		return nil, err
	}
	return m, nil
}

// StorageKeyFor builds the object key of an original file
func StorageKeyFor(tenantID uuid.UUID, collection string, mediaID uuid.UUID, fileName string) string {
	return fmt.Sprintf("tenants/%s/media/%s/%s/%s", tenantID, collection, mediaID, fileName)
}

// ValidateStorageKey rejects keys that could escape the tenant prefix
func ValidateStorageKey(key string) error {
	switch {
	case key == "":
		return shared.InvalidInput("storage key cannot be empty")
	case len(key) > 500:
		return shared.InvalidInput("storage key cannot exceed 500 characters")
	case strings.Contains(key, ".."):
		return shared.InvalidInput("storage key cannot contain path traversal sequences")
	case strings.HasPrefix(key, "/"), strings.Contains(key, `\`):
		return shared.InvalidInput("storage key must be a relative path")
	}
	return nil
}

// SanitizeFileName reduces name to a safe base name. The extension is
// forced to match mimeType when the given one disagrees.
func SanitizeFileName(name, mimeType string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		name = ""
	}
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))
	base = unsafeFileChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, ".-")
	for strings.Contains(base, "..") {
		base = strings.ReplaceAll(base, "..", ".")
	}
	if base == "" {
		base = "file"
	}

	want := ExtensionFor(mimeType)
	if want != "" && !extensionMatches(ext, want) {
		ext = want
	}
	ext = unsafeFileChars.ReplaceAllString(ext, "")
	if max := maxFileNameLength - len(ext); len(base) > max {
		base = base[:max]
	}
	return base + ext
}

func extensionMatches(ext, canonical string) bool {
	if ext == canonical {
		return true
	}
	return canonical == ".jpg" && ext == ".jpeg"
}

// IsTrashed reports whether the media is soft-deleted
func (m *Media) IsTrashed() bool {
	return m.DeletedAt != nil
}

// IsImage reports whether the media can be transformed
func (m *Media) IsImage() bool {
	return IsImageType(m.MimeType)
}

// Trash soft-deletes the media; the stored objects are kept
func (m *Media) Trash(now time.Time) error {
	if m.IsTrashed() {
		return shared.InvalidState("media is already in the trash")
	}
	at := now.UTC()
	m.DeletedAt = &at
	m.IncrementVersion()
	m.AddDomainEvent(newMediaEvent(EventTypeMediaTrashed, m))
	return nil
}

// Restore takes the media out of the trash
func (m *Media) Restore() error {
	if !m.IsTrashed() {
		return shared.InvalidState("media is not in the trash")
	}
	m.DeletedAt = nil
	m.IncrementVersion()
	m.AddDomainEvent(newMediaEvent(EventTypeMediaRestored, m))
	return nil
}

// MarkUploaded records the uploaded event once the object is stored
func (m *Media) MarkUploaded() {
	m.AddDomainEvent(newMediaEvent(EventTypeMediaUploaded, m))
}

// MarkDeleted records the permanent deletion event
func (m *Media) MarkDeleted() {
	m.AddDomainEvent(newMediaEvent(EventTypeMediaDeleted, m))
}

// SetDimensions stores the pixel size of an image
func (m *Media) SetDimensions(width, height int) {
	m.Width = width
	m.Height = height
}

// ConversionKey returns where conversion name of this media is stored
func (m *Media) ConversionKey(name string) string {
	base := strings.TrimSuffix(m.FileName, path.Ext(m.FileName))
	return path.Join(path.Dir(m.StorageKey), "conversions", name+"-"+base+".jpg")
}

// SetConversion records a generated rendition
func (m *Media) SetConversion(name string, c Conversion) {
	if m.Conversions == nil {
		m.Conversions = map[string]Conversion{}
	}
	m.Conversions[name] = c
}

// ObjectKeys lists every stored object: the original and its conversions
func (m *Media) ObjectKeys() []string {
	keys := []string{m.StorageKey}
	for _, c := range m.Conversions {
		if c.Key != "" && c.Key != m.StorageKey {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// TotalBytes is the storage consumed by the original and its conversions
func (m *Media) TotalBytes() int64 {
	total := m.Size
	for _, c := range m.Conversions {
		total += c.Size
	}
	return total
}

// ReplaceContent updates the metadata after the original was rewritten
func (m *Media) ReplaceContent(mimeType string, size int64, width, height int) error {
	if m.IsTrashed() {
		return shared.InvalidState("cannot modify media in the trash")
	}
	m.MimeType = NormalizeMimeType(mimeType)
	m.Size = size
	m.Width = width
	m.Height = height
	m.IncrementVersion()
	return nil
}

// UpdateProperties changes the editable metadata. Nil arguments are left as is;
// customProps entries with a nil value are removed.
func (m *Media) UpdateProperties(name *string, customProps map[string]any, order *int) error {
	if m.IsTrashed() {
		return shared.InvalidState("cannot modify media in the trash")
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" || utf8.RuneCountInString(n) > 255 {
			return shared.InvalidInput("name must be between 1 and 255 characters")
		}
		m.Name = n
	}
	if order != nil {
		if *order < 0 {
			return shared.InvalidInput("order cannot be negative")
		}
		m.OrderColumn = *order
	}
	if m.CustomProperties == nil {
		m.CustomProperties = map[string]any{}
	}
	for k, v := range customProps {
		if v == nil {
			delete(m.CustomProperties, k)
			continue
		}
		m.CustomProperties[k] = v
	}
	m.IncrementVersion()
	return nil
}
