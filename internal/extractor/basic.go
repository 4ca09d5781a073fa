package extractor

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/metascan/metascan/pkg/types"
)

// ExtractBasic returns the stat-derived attributes for path. It fails
// with a file_access error when the path does not exist or is not a
// regular file.
func (e *Extractor) ExtractBasic(path string) (types.BasicInfo, *types.ExtractError) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return types.BasicInfo{}, Classify(err)
	}

	info, err := e.statFn(abs)
	if err != nil {
		return types.BasicInfo{}, Classify(err)
	}
	if !info.Mode().IsRegular() {
		return types.BasicInfo{}, Classify(fmt.Errorf("%s: %w", abs, types.ErrNotRegularFile))
	}

	name := info.Name()
	ext := strings.ToLower(filepath.Ext(name))

	return types.BasicInfo{
		Name:        name,
		Path:        abs,
		Dir:         filepath.Dir(abs),
		Stem:        strings.TrimSuffix(name, filepath.Ext(name)),
		Extension:   ext,
		SizeBytes:   info.Size(),
		ModTime:     info.ModTime(),
		Permissions: fmt.Sprintf("%03o", info.Mode().Perm()),
		MIMEType:    mime.TypeByExtension(ext),
		Category:    types.CategoryForPath(name),
		Hidden:      strings.HasPrefix(name, "."),
	}, nil
}
