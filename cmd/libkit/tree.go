package main

import (
	"path"

	"github.com/disiqueira/gotree/v3"
)

// fileTree renders slash-separated library file paths as a tree.
type fileTree struct {
	tree gotree.Tree
	dirs map[string]gotree.Tree
}

func newFileTree(rootLabel string) fileTree {
	return fileTree{tree: gotree.New(rootLabel), dirs: make(map[string]gotree.Tree)}
}

func (t fileTree) getDir(dirPath string) (dir gotree.Tree) {
	if dirPath == "." || dirPath == "" {
		return t.tree
	}
	dir = t.dirs[dirPath]
	if dir == nil {
		parentDir := t.getDir(path.Dir(dirPath))
		dir = parentDir.Add(path.Base(dirPath))
		t.dirs[dirPath] = dir
	}
	return
}

func (t fileTree) insert(filePath string) {
	t.getDir(path.Dir(filePath)).Add(path.Base(filePath))
}

func (t fileTree) render() string {
	return t.tree.Print()
}
