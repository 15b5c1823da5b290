// Package fsutil holds small filesystem predicates shared by the watcher and
// the CLI.
package fsutil

import "os"

// DirExists reports whether path names an existing directory. Symlinks are
// followed.
func DirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
