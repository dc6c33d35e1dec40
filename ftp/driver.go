// Package ftp implements the control-channel protocol engine of the
// ingestion gateway: authentication, the command dispatch loop, and
// passive/active data channel negotiation.
package ftp

import (
	"errors"
	"io"
	"os"
)

// ErrNoPassivePort is returned when every port in the configured passive
// range is in use. The session stays usable; the client may retry.
var ErrNoPassivePort = errors.New("no available passive port")

// Driver authenticates control sessions and hands out a per-session view of
// the upload root.
type Driver interface {
	// Authenticate validates a credential pair. On success it returns the
	// ClientDriver the session will operate on; any error is reported to
	// the client as a login failure.
	Authenticate(user, pass string) (ClientDriver, error)

	// ClientError is notified of session-level failures, such as data
	// connection setup errors.
	ClientError(sessionID string, err error)
}

// ClientDriver is one session's file operations. Paths are virtual; the
// implementation resolves them against its own working directory state.
//
// Error handling: return os.ErrNotExist for missing entries and
// os.ErrPermission for denied operations. The session engine translates
// these into FTP reply codes.
type ClientDriver interface {
	ChangeDir(path string) error
	Pwd() string
	List(path string) ([]os.FileInfo, error)
	Stat(path string) (os.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
	Create(path string) (io.WriteCloser, error)
	MakeDir(path string) error
	RemoveDir(path string) error
	DeleteFile(path string) error
	Rename(from, to string) error
}
