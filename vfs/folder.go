// Package vfs exposes a managed upload root as the virtual folder an FTP
// session navigates. Every path a client sends is resolved against the
// session's working directory and contained within the root.
package vfs

import (
	"errors"
	"io"
	"os"
	"path"
	"time"

	log "github.com/fclairamb/go-log"
	"github.com/spf13/afero"
)

// ErrInvalidTarget is returned when an operation is aimed at an entry of the
// wrong kind, such as deleting a directory through DELE.
var ErrInvalidTarget = errors.New("invalid target")

// UploadHook is invoked after an uploaded file has been fully written and
// closed. The path is virtual (absolute within the folder).
type UploadHook func(virtualPath string)

// Folder is one session's view of the upload root. It is not safe for
// concurrent use; each session owns its own Folder.
type Folder struct {
	fs       afero.Fs
	logger   log.Logger
	cwd      string
	onUpload UploadHook
}

// Option configures a Folder.
type Option func(*Folder)

// WithUploadHook registers the post-upload callback.
func WithUploadHook(hook UploadHook) Option {
	return func(f *Folder) {
		f.onUpload = hook
	}
}

// NewFolder builds a session folder rooted at fs, starting at "/".
func NewFolder(fs afero.Fs, logger log.Logger, opts ...Option) *Folder {
	f := &Folder{
		fs:     fs,
		logger: logger,
		cwd:    "/",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// resolve turns a client-supplied path into an absolute virtual path. Rooted
// joining plus Clean keeps every result inside "/" no matter how many ".."
// segments the input carries.
func (f *Folder) resolve(p string) string {
	if !path.IsAbs(p) {
		p = path.Join(f.cwd, p)
	}
	return path.Clean(path.Join("/", p))
}

// Pwd returns the current virtual working directory.
func (f *Folder) Pwd() string {
	return f.cwd
}

// ChangeDir moves the working directory, creating the target lazily the way
// a managed drop folder behaves. The previous directory is kept on failure.
func (f *Folder) ChangeDir(p string) error {
	target := f.resolve(p)

	info, err := f.fs.Stat(target)
	switch {
	case err == nil && !info.IsDir():
		return ErrInvalidTarget
	case err != nil && os.IsNotExist(err):
		if err := f.fs.MkdirAll(target, 0o755); err != nil {
			return err
		}
		f.logger.Debug("directory created on change", "path", target)
	case err != nil:
		return err
	}

	f.cwd = target
	return nil
}

// List returns the entries of a directory with synthetic "." and ".."
// prepended. A directory that does not exist yet is created and listed
// empty. Listing a file returns that single entry. Children whose stat
// fails are skipped rather than failing the whole listing.
func (f *Folder) List(p string) ([]os.FileInfo, error) {
	target := f.resolve(p)

	info, err := f.fs.Stat(target)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := f.fs.MkdirAll(target, 0o755); err != nil {
			return nil, err
		}
		f.logger.Debug("directory created on list", "path", target)
		return []os.FileInfo{dotInfo("."), dotInfo("..")}, nil
	}

	if !info.IsDir() {
		return []os.FileInfo{info}, nil
	}

	dir, err := f.fs.Open(target)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dir.Close() }()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil, err
	}

	entries := make([]os.FileInfo, 0, len(names)+2)
	entries = append(entries, dotInfo("."), dotInfo(".."))
	for _, name := range names {
		child, err := f.fs.Stat(path.Join(target, name))
		if err != nil {
			f.logger.Warn("skipping unreadable entry", "path", path.Join(target, name), "err", err)
			continue
		}
		entries = append(entries, child)
	}
	return entries, nil
}

// Stat resolves and stats a virtual path.
func (f *Folder) Stat(p string) (os.FileInfo, error) {
	return f.fs.Stat(f.resolve(p))
}

// Open opens a file for reading.
func (f *Folder) Open(p string) (io.ReadCloser, error) {
	return f.fs.Open(f.resolve(p))
}

// Create opens a file for writing, creating missing parents and truncating
// any previous content. The returned file fires the upload hook on Close.
func (f *Folder) Create(p string) (io.WriteCloser, error) {
	target := f.resolve(p)

	if err := f.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return nil, err
	}

	file, err := f.fs.Create(target)
	if err != nil {
		return nil, err
	}
	return &uploadFile{File: file, path: target, hook: f.onUpload}, nil
}

// MakeDir creates a directory and any missing parents.
func (f *Folder) MakeDir(p string) error {
	return f.fs.MkdirAll(f.resolve(p), 0o755)
}

// RemoveDir removes an empty directory.
func (f *Folder) RemoveDir(p string) error {
	target := f.resolve(p)

	info, err := f.fs.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return ErrInvalidTarget
	}
	return f.fs.Remove(target)
}

// DeleteFile removes a file. Directories are rejected.
func (f *Folder) DeleteFile(p string) error {
	target := f.resolve(p)

	info, err := f.fs.Stat(target)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return ErrInvalidTarget
	}
	return f.fs.Remove(target)
}

// Rename moves an entry, creating missing parents of the destination.
func (f *Folder) Rename(from, to string) error {
	src := f.resolve(from)
	dst := f.resolve(to)

	if err := f.fs.MkdirAll(path.Dir(dst), 0o755); err != nil {
		return err
	}
	return f.fs.Rename(src, dst)
}

// uploadFile defers the upload hook until the data channel is done writing.
type uploadFile struct {
	afero.File
	path  string
	hook  UploadHook
	fired bool
}

func (u *uploadFile) Close() error {
	err := u.File.Close()
	if err == nil && u.hook != nil && !u.fired {
		u.fired = true
		u.hook(u.path)
	}
	return err
}

// Abort closes the file without firing the upload hook. Called when the
// data transfer failed and the content is incomplete.
func (u *uploadFile) Abort() error {
	u.fired = true
	return u.File.Close()
}

// dotFileInfo backs the synthetic "." and ".." listing entries.
type dotFileInfo struct {
	name string
}

func dotInfo(name string) os.FileInfo {
	return dotFileInfo{name: name}
}

func (d dotFileInfo) Name() string       { return d.name }
func (d dotFileInfo) Size() int64        { return 0 }
func (d dotFileInfo) Mode() os.FileMode  { return os.ModeDir | 0o755 }
func (d dotFileInfo) ModTime() time.Time { return time.Now() }
func (d dotFileInfo) IsDir() bool        { return true }
func (d dotFileInfo) Sys() interface{}   { return nil }
