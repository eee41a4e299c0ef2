package services

import (
	"mime"
	"path"
	"strings"

	"github.com/engineerhub/engineerhub/internal/server/models"
)

var allowedExtensions = map[string]models.FileCategory{
	"pdf":  models.CategoryPDF,
	"doc":  models.CategoryDocument,
	"docx": models.CategoryDocument,
	"png":  models.CategoryImage,
	"jpg":  models.CategoryImage,
	"jpeg": models.CategoryImage,
	"gif":  models.CategoryImage,
}

// extension returns the lower-cased extension of name without the dot.
func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// IsAllowedFile reports whether name has an extension notes may be uploaded with.
func IsAllowedFile(name string) bool {
	_, ok := allowedExtensions[extension(name)]
	return ok
}

// Classify maps a file name to its category by extension.
func Classify(name string) models.FileCategory {
	if c, ok := allowedExtensions[extension(name)]; ok {
		return c
	}
	return models.CategoryOther
}

// contentTypeFor prefers the client-declared type and falls back to the
// extension's registered MIME type.
func contentTypeFor(name, declared string) string {
	if declared != "" {
		return declared
	}
	if ct := mime.TypeByExtension("." + extension(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// displayName is the part of a storage key after the last '/'.
func displayName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
