package media

import (
	"regexp"
	"strings"

	"github.com/backoffice/saas/internal/domain/shared"
)

// Well-known collections
const (
	CollectionDefault       = "default"
	CollectionBannersCovers = "banners_covers"
	CollectionProducts      = "products"
	CollectionAvatars       = "avatars"
	CollectionDocuments     = "documents"
)

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Collection is a named bucket grouping media under shared rules
type Collection struct {
	Name string
	// SingleFile collections keep one live item; a new upload trashes the old one
	SingleFile bool
	// Accepts lists allowed MIME types; empty means every permitted type
	Accepts []string
}

var collections = map[string]Collection{
	CollectionDefault:       {Name: CollectionDefault},
	CollectionBannersCovers: {Name: CollectionBannersCovers, Accepts: imageTypes},
	CollectionProducts:      {Name: CollectionProducts, Accepts: imageTypes},
	CollectionAvatars:       {Name: CollectionAvatars, SingleFile: true, Accepts: imageTypes},
	CollectionDocuments:     {Name: CollectionDocuments, Accepts: append([]string{MimePDF}, imageTypes...)},
}

// ResolveCollection returns the rules for name. Names that are well-formed
// but not predefined behave like the default collection.
func ResolveCollection(name string) (Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = CollectionDefault
	}
	if !collectionNamePattern.MatchString(name) {
		return Collection{}, shared.InvalidInput("collection name must match %s", collectionNamePattern.String())
	}
	if c, ok := collections[name]; ok {
		return c, nil
	}
	return Collection{Name: name}, nil
}

// Allows reports whether mimeType may be stored in the collection
func (c Collection) Allows(mimeType string) bool {
	if !IsPermittedType(mimeType) {
		return false
	}
	if len(c.Accepts) == 0 {
		return true
	}
	for _, m := range c.Accepts {
		if m == mimeType {
			return true
		}
	}
	return false
}
