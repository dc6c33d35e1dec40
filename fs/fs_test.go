package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifyhq/finale-ftp/log/zaplog"
	"github.com/unifyhq/finale-ftp/models"
)

func TestLoadFsOs(t *testing.T) {
	base := filepath.Join(t.TempDir(), "uploads")
	access := &models.Access{
		Fs:     "os",
		Params: map[string]string{"base_path": base},
	}

	fs, err := LoadFs(access, zaplog.NewNop())
	require.NoError(t, err)
	require.NotNil(t, fs)

	// The base path must have been created on load.
	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, fs.MkdirAll("in", 0o755))
	_, err = os.Stat(filepath.Join(base, "in"))
	assert.NoError(t, err)
}

func TestLoadFsOsMissingBasePath(t *testing.T) {
	access := &models.Access{Fs: "os", Params: map[string]string{}}

	_, err := LoadFs(access, zaplog.NewNop())
	assert.Error(t, err)
}

func TestLoadFsReadOnly(t *testing.T) {
	access := &models.Access{
		Fs:       "os",
		ReadOnly: true,
		Params:   map[string]string{"base_path": t.TempDir()},
	}

	fs, err := LoadFs(access, zaplog.NewNop())
	require.NoError(t, err)

	err = fs.MkdirAll("in", 0o755)
	assert.Error(t, err)
}

func TestLoadFsUnsupported(t *testing.T) {
	access := &models.Access{Fs: "tape"}

	_, err := LoadFs(access, zaplog.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported FS")
}

func TestLoadFsDropboxMissingToken(t *testing.T) {
	t.Setenv("DROPBOX_TOKEN", "")
	access := &models.Access{Fs: "dropbox", Params: map[string]string{}}

	_, err := LoadFs(access, zaplog.NewNop())
	assert.Error(t, err)
}
