package types

import (
	"path/filepath"
	"strings"
)

// Category is the coarse file kind that selects which extraction
// capability applies to a file.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
	CategoryArchive  Category = "archive"
	CategoryUnknown  Category = "unknown"
)

// categoryExtensions maps each category to its recognized extensions
// (lowercase, with leading dot).
var categoryExtensions = map[Category][]string{
	CategoryImage:    {".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp", ".gif"},
	CategoryAudio:    {".mp3", ".flac", ".ogg", ".m4a", ".wav", ".wma"},
	CategoryVideo:    {".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm"},
	CategoryDocument: {".pdf", ".docx", ".doc", ".txt", ".rtf"},
	CategoryArchive:  {".zip", ".rar", ".7z", ".tar", ".gz"},
}

// extensionCategory is the flattened reverse lookup, built once at init.
var extensionCategory = func() map[string]Category {
	m := make(map[string]Category)
	for cat, exts := range categoryExtensions {
		for _, ext := range exts {
			m[ext] = cat
		}
	}
	return m
}()

// CategoryForPath returns the category for a file path based on its
// extension. Unrecognized extensions map to CategoryUnknown.
func CategoryForPath(path string) Category {
	ext := strings.ToLower(filepath.Ext(path))
	if cat, ok := extensionCategory[ext]; ok {
		return cat
	}
	return CategoryUnknown
}

// ExtensionsForCategory returns the extensions recognized for a category.
// The returned slice is a copy.
func ExtensionsForCategory(cat Category) []string {
	exts := categoryExtensions[cat]
	out := make([]string, len(exts))
	copy(out, exts)
	return out
}

// SupportedExtensions returns all recognized extensions across categories.
func SupportedExtensions() []string {
	var out []string
	for _, exts := range categoryExtensions {
		out = append(out, exts...)
	}
	return out
}

// ExtractableCategories lists the categories that have a per-category
// extraction capability slot. Archives carry basic info only.
func ExtractableCategories() []Category {
	return []Category{CategoryImage, CategoryAudio, CategoryVideo, CategoryDocument}
}
