package file

import (
	"path/filepath"
	"strings"
)

// ReplaceExt swaps the extension of path for ext. A leading dot on ext is
// optional.
func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(filepath.Dir(path), stem(filepath.Base(path))+ext)
}

// WithLanguage inserts a language tag before the extension, so
// "notes/letter.txt" becomes "notes/letter.vi.txt".
func WithLanguage(path, lang string) string {
	if path == "" || lang == "" {
		return path
	}
	base := filepath.Base(path)
	name := stem(base)
	return filepath.Join(filepath.Dir(path), name+"."+lang+base[len(name):])
}

// stem drops the last extension. Dotfiles keep their name.
func stem(filename string) string {
	lastDot := strings.LastIndex(filename, ".")
	if lastDot <= 0 {
		return filename
	}
	return filename[:lastDot]
}
