// Package afos provides the local OS file system backend.
package afos

import (
	"errors"
	"os"

	"github.com/spf13/afero"

	"github.com/unifyhq/finale-ftp/models"
	"github.com/unifyhq/finale-ftp/utils"
)

// ErrMissingBasePath is returned if no base path was specified.
var ErrMissingBasePath = errors.New("missing base path")

// LoadFs loads a file system from an access description. The base path is
// created if it does not exist and everything outside of it stays out of
// reach.
func LoadFs(access *models.Access) (afero.Fs, error) {
	basePath := access.Param("base_path")

	if basePath == "" {
		basePath = os.Getenv("UPLOAD_ROOT")
	}

	if basePath == "" {
		return nil, ErrMissingBasePath
	}

	basePath = utils.AbsPath(basePath)

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}

	return afero.NewBasePathFs(afero.NewOsFs(), basePath), nil
}
