package types

import "time"

// BasicInfo holds the stat-derived attributes extracted for every file
// regardless of category.
type BasicInfo struct {
	Name        string
	Path        string // absolute
	Dir         string
	Stem        string
	Extension   string // lowercase, with leading dot
	SizeBytes   int64
	ModTime     time.Time
	Permissions string // octal, e.g. "644"
	MIMEType    string
	Category    Category
	Hidden      bool
}

// FieldsMap renders the basic info as result fields, matching the keys
// the reporting layers expect.
func (b BasicInfo) FieldsMap() map[string]any {
	return map[string]any{
		"filename":         b.Name,
		"filepath":         b.Path,
		"parent_directory": b.Dir,
		"stem":             b.Stem,
		"extension":        b.Extension,
		"size":             b.SizeBytes,
		"size_human":       HumanSize(b.SizeBytes),
		"modified":         b.ModTime.Format(time.RFC3339),
		"permissions":      b.Permissions,
		"mime_type":        b.MIMEType,
		"file_type":        string(b.Category),
		"is_hidden":        b.Hidden,
	}
}
