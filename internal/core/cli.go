package core

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ArgError reports a positional argument the uploader cannot use.
type ArgError struct {
	Arg   string
	Cause string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

// Resolve expands the positional arguments into batch members. A plain file
// contributes its base name; a directory contributes every file beneath it,
// prefixed with the directory's own name so the server reproduces the
// subfolder structure.
func Resolve(args []string) ([]LocalFile, error) {
	if len(args) == 0 {
		return nil, &ArgError{Arg: "<path>", Cause: "no files or directories given"}
	}

	var files []LocalFile
	for _, raw := range args {
		p := filepath.Clean(raw)
		info, err := os.Stat(p)
		if err != nil {
			return nil, &ArgError{Arg: raw, Cause: "not found or not accessible"}
		}

		if !info.IsDir() {
			files = append(files, LocalFile{
				absPath: p,
				relPath: filepath.Base(p),
			})
			continue
		}

		dir := p
		prefix := filepath.Base(dir)
		walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, LocalFile{
				absPath: path,
				relPath: filepath.ToSlash(filepath.Join(prefix, rel)),
			})
			return nil
		})
		if walkErr != nil {
			return nil, &ArgError{Arg: raw, Cause: walkErr.Error()}
		}
	}

	return files, nil
}
