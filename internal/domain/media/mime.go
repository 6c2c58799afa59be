package media

import "strings"

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeWebP = "image/webp"
	MimePDF  = "application/pdf"
	MimeText = "text/plain"
	MimeCSV  = "text/csv"
	MimeMP4  = "video/mp4"
)

var imageTypes = []string{MimeJPEG, MimePNG, MimeGIF, MimeWebP}

// permittedTypes maps each storable MIME type to its canonical extension.
// SVG is absent because it can carry script.
var permittedTypes = map[string]string{
	MimeJPEG: ".jpg",
	MimePNG:  ".png",
	MimeGIF:  ".gif",
	MimeWebP: ".webp",
	MimePDF:  ".pdf",
	MimeText: ".txt",
	MimeCSV:  ".csv",
	MimeMP4:  ".mp4",
}

// NormalizeMimeType drops parameters such as "; charset=utf-8"
func NormalizeMimeType(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

// IsPermittedType reports whether the type may be stored at all
func IsPermittedType(mimeType string) bool {
	_, ok := permittedTypes[NormalizeMimeType(mimeType)]
	return ok
}

// IsImageType reports whether the type is a raster image we can transform
func IsImageType(mimeType string) bool {
	m := NormalizeMimeType(mimeType)
	for _, t := range imageTypes {
		if t == m {
			return true
		}
	}
	return false
}

// ExtensionFor returns the canonical file extension for a permitted type
func ExtensionFor(mimeType string) string {
	return permittedTypes[NormalizeMimeType(mimeType)]
}
