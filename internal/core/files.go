package core

// LocalFile is one batch member on the local filesystem.
type LocalFile struct {
	absPath string
	relPath string // forward-slash path sent as the part filename
}

func (f LocalFile) AbsPath() string {
	return f.absPath
}

func (f LocalFile) RelPath() string {
	return f.relPath
}
