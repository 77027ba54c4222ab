package storage

import (
	"path"
	"path/filepath"
	"strings"
)

// ImageName returns the filename portion of an object key.
// Folder markers ("prefix/") have no filename and yield "".
func ImageName(key string) string {
	if key == "" || strings.HasSuffix(key, "/") {
		return ""
	}
	return path.Base(key)
}

// ResultKey is the destination key for an image's result file: <prefix>/<name><suffix>.
func ResultKey(resultsPrefix, name, suffix string) string {
	prefix := strings.Trim(strings.TrimSpace(resultsPrefix), "/")
	file := name + suffix
	if prefix == "" {
		return file
	}
	return prefix + "/" + file
}

// LocalPath maps an object key under baseDir using OS separators.
func LocalPath(baseDir, key string) string {
	if baseDir == "" {
		baseDir = "."
	}
	return filepath.Join(baseDir, filepath.FromSlash(key))
}

// HasExtension reports whether key ends in one of exts, case-insensitively.
// An empty exts list matches everything.
func HasExtension(key string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(key))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
