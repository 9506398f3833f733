package definition

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileExt is the definition file extension discovered when walking
// directories.
const FileExt = ".gct"

// Discover expands a mix of files and directories into the ordered list of
// definition files to run. Directories are walked recursively for FileExt
// files; explicitly named files are taken as-is. The result preserves
// argument order, with directory contents sorted for reproducible runs.
func Discover(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, &IOError{Path: path, Err: err}
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		var found []string
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), FileExt) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, &IOError{Path: path, Err: err}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
