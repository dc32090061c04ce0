// Package bundle turns command line paths into a single upload: a regular
// file as-is, or several paths and directories zipped together.
package bundle

import (
	"io"
	"os"
	"time"
)

// Source is one file ready to be uploaded.
type Source struct {
	Name    string
	Size    int64 // -1 for a zip streamed on the fly
	Bundled bool
	Files   int

	open func() (io.ReadCloser, error)
}

// Open returns a fresh reader over the upload content.
func (s *Source) Open() (io.ReadCloser, error) {
	return s.open()
}

// Prepare parses args into a Source. A single regular file is sent
// unchanged; anything else is zipped.
func Prepare(args []string, now time.Time) (*Source, error) {
	paths, err := ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if len(paths) == 1 && paths[0].Kind == PathFile {
		path := paths[0].FullPath
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		return &Source{
			Name:  info.Name(),
			Size:  info.Size(),
			Files: 1,
			open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		}, nil
	}

	tree, err := BuildTree(paths, now)
	if err != nil {
		return nil, err
	}
	files := len(tree.Files())
	if files == 0 {
		return nil, &ValidationError{Arg: args[0], Cause: "no files to send"}
	}

	return &Source{
		Name:    tree.Root.Name() + ".zip",
		Size:    -1,
		Bundled: true,
		Files:   files,
		open: func() (io.ReadCloser, error) {
			pr, pw := io.Pipe()
			go func() {
				pw.CloseWithError(tree.WriteZip(pw))
			}()
			return pr, nil
		},
	}, nil
}
