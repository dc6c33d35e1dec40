package finaleftp_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	client "github.com/jlaffaye/ftp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	finaleftp "github.com/unifyhq/finale-ftp"
	"github.com/unifyhq/finale-ftp/config"
	"github.com/unifyhq/finale-ftp/log/zaplog"
	"github.com/unifyhq/finale-ftp/store"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.FTP.User = "ingest"
	cfg.FTP.Pass = "secret"
	cfg.FTP.PublicIP = "127.0.0.1"
	cfg.FTP.PasvMinPort = 0
	cfg.FTP.PasvMaxPort = 0
	return cfg
}

func startGateway(t *testing.T) (string, afero.Fs, *store.Memory) {
	t.Helper()

	backend := afero.NewMemMapFs()
	mem := store.NewMemory()

	gw, err := finaleftp.New(context.Background(), testConfig(),
		finaleftp.WithLogger(zaplog.NewNop()),
		finaleftp.WithFilesystem(backend),
		finaleftp.WithStore(mem),
	)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = gw.Serve(ln) }()
	t.Cleanup(func() { _ = gw.Stop() })

	return ln.Addr().String(), backend, mem
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestUploadTriggersIngestion(t *testing.T) {
	addr, backend, mem := startGateway(t)

	c, err := client.Dial(addr, client.DialWithTimeout(5*time.Second))
	require.NoError(t, err)
	defer func() { _ = c.Quit() }()
	require.NoError(t, c.Login("ingest", "secret"))

	body := `[
		{"id": "A-1", "sku": "SKU-1", "name": "Widget", "quantity": 4},
		{"itemId": "B-2", "quantity": 2, "warehouse_zone": "Z4"}
	]`
	require.NoError(t, c.Stor("in/items.json", strings.NewReader(body)))

	// Ingestion runs asynchronously after the transfer completes.
	waitFor(t, func() bool { return mem.Len() == 2 })

	item, ok := mem.Get("A-1")
	require.True(t, ok)
	assert.Equal(t, 4, item.Quantity)

	item, ok = mem.Get("B-2")
	require.True(t, ok)
	require.NotNil(t, item.Metadata)
	assert.Contains(t, *item.Metadata, "warehouse_zone")

	// The artifact was relocated into the processed directory.
	waitFor(t, func() bool {
		_, err := backend.Stat("/in/items.json")
		return err != nil
	})
	entries, err := afero.ReadDir(backend, "/in/processed")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_items.json"))
}

func TestNonJSONUploadIsStoredUntouched(t *testing.T) {
	addr, backend, mem := startGateway(t)

	c, err := client.Dial(addr, client.DialWithTimeout(5*time.Second))
	require.NoError(t, err)
	defer func() { _ = c.Quit() }()
	require.NoError(t, c.Login("ingest", "secret"))

	require.NoError(t, c.Stor("in/report.csv", strings.NewReader("a,b\n1,2\n")))

	// CSV has no ingestion adapter; the file stays and nothing was upserted.
	time.Sleep(100 * time.Millisecond)
	_, err = backend.Stat("/in/report.csv")
	assert.NoError(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestNonArrayUploadLeftInPlace(t *testing.T) {
	addr, backend, mem := startGateway(t)

	c, err := client.Dial(addr, client.DialWithTimeout(5*time.Second))
	require.NoError(t, err)
	defer func() { _ = c.Quit() }()
	require.NoError(t, c.Login("ingest", "secret"))

	require.NoError(t, c.Stor("in/object.json", strings.NewReader(`{"id":"A"}`)))

	time.Sleep(100 * time.Millisecond)
	_, err = backend.Stat("/in/object.json")
	assert.NoError(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestAuthenticateExactMatch(t *testing.T) {
	gw, err := finaleftp.New(context.Background(), testConfig(),
		finaleftp.WithLogger(zaplog.NewNop()),
		finaleftp.WithFilesystem(afero.NewMemMapFs()),
		finaleftp.WithStore(store.NewMemory()),
	)
	require.NoError(t, err)
	defer func() { _ = gw.Stop() }()

	_, err = gw.Authenticate("ingest", "secret")
	assert.NoError(t, err)

	_, err = gw.Authenticate("ingest", "Secret")
	assert.Error(t, err, "credential comparison is case sensitive")

	_, err = gw.Authenticate("INGEST", "secret")
	assert.Error(t, err)
}
