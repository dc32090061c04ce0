package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type Node interface {
	Path() string
	Name() string
}

type File struct {
	path string
	name string
	dir  *Dir
}

type Dir struct {
	path     string
	name     string
	children []Node
	parent   *Dir
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Name() string {
	return f.name
}

func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) Name() string {
	return d.name
}

func (d *Dir) Children() []Node {
	return d.children
}

// Tree is the set of paths that make up one upload.
type Tree struct {
	Root Node
}

// BuildTree walks the parsed paths. Several top-level paths are gathered
// under a virtual directory named after now.
func BuildTree(paths []ParsedPath, now time.Time) (*Tree, error) {
	var rootNodes []Node

	for _, parsedPath := range paths {
		if parsedPath.Kind == PathDir {
			dirNode, err := buildDirTree(parsedPath.FullPath)
			if err != nil {
				return nil, err
			}
			rootNodes = append(rootNodes, dirNode)
		} else {
			rootNodes = append(rootNodes, &File{
				path: parsedPath.FullPath,
				name: filepath.Base(parsedPath.FullPath),
			})
		}
	}

	if len(rootNodes) == 0 {
		return nil, fmt.Errorf("no valid paths provided")
	}

	if len(rootNodes) == 1 {
		return &Tree{Root: rootNodes[0]}, nil
	}
	return &Tree{Root: createVirtualRoot(rootNodes, now)}, nil
}

func buildDirTree(dirPath string) (*Dir, error) {
	dir := &Dir{
		path:     dirPath,
		name:     filepath.Base(dirPath),
		children: []Node{},
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		childPath := filepath.Join(dirPath, entry.Name())

		switch {
		case entry.IsDir():
			childDir, err := buildDirTree(childPath)
			if err != nil {
				return nil, err
			}
			childDir.parent = dir
			dir.children = append(dir.children, childDir)
		case entry.Type().IsRegular():
			dir.children = append(dir.children, &File{
				path: childPath,
				name: entry.Name(),
				dir:  dir,
			})
		}
		// symlinks, sockets and devices are skipped
	}

	return dir, nil
}

func createVirtualRoot(children []Node, now time.Time) *Dir {
	name := BundleName(now)
	virtualRoot := &Dir{
		path:     name,
		name:     name,
		children: children,
	}

	for _, child := range children {
		switch n := child.(type) {
		case *Dir:
			n.parent = virtualRoot
		case *File:
			n.dir = virtualRoot
		}
	}

	return virtualRoot
}

// BundleName names the virtual root for several paths.
func BundleName(now time.Time) string {
	return "bundle_" + now.Format("20060102_150405")
}

// Files returns every file in the tree keyed by its path inside the archive.
func (t *Tree) Files() map[string]*File {
	out := make(map[string]*File)
	var walk func(n Node, base string)
	walk = func(n Node, base string) {
		archivePath := filepath.ToSlash(filepath.Join(base, n.Name()))
		switch n := n.(type) {
		case *File:
			out[archivePath] = n
		case *Dir:
			for _, child := range n.Children() {
				walk(child, archivePath)
			}
		}
	}
	walk(t.Root, "")
	return out
}

// ArchivePaths returns the sorted archive paths of all files.
func (t *Tree) ArchivePaths() []string {
	files := t.Files()
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// UncompressedSize sums the sizes of all files in the tree.
func (t *Tree) UncompressedSize() (int64, error) {
	var total int64
	for _, f := range t.Files() {
		info, err := os.Stat(f.Path())
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
