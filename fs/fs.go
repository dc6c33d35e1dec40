// Package fs loads the afero backend the upload root lives on from an
// access description.
package fs

import (
	"fmt"

	log "github.com/fclairamb/go-log"
	"github.com/spf13/afero"

	"github.com/unifyhq/finale-ftp/fs/afos"
	"github.com/unifyhq/finale-ftp/fs/dropbox"
	"github.com/unifyhq/finale-ftp/fs/s3"
	"github.com/unifyhq/finale-ftp/models"
)

// UnsupportedFsError is returned when the described file system is not supported
type UnsupportedFsError struct {
	error
	Type string
}

func (err UnsupportedFsError) Error() string {
	return fmt.Sprintf("Unsupported FS: %s", err.Type)
}

// LoadFs loads a file system from an access description
func LoadFs(access *models.Access, logger log.Logger) (afero.Fs, error) {
	var fs afero.Fs
	var err error
	switch access.Fs {
	case "os":
		fs, err = afos.LoadFs(access)
	case "s3":
		fs, err = s3.LoadFs(access)
	case "dropbox":
		fs, err = dropbox.LoadFs(access)
	default:
		fs, err = nil, &UnsupportedFsError{Type: access.Fs}
	}

	if err != nil {
		return nil, err
	}

	if access.ReadOnly {
		fs = afero.NewReadOnlyFs(fs)
	}

	logger.Info("storage backend loaded", "fs", access.Fs, "readOnly", access.ReadOnly)

	return fs, nil
}
