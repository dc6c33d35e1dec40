// Package finaleftp wires the configuration, storage backend, ingestion
// pipeline and FTP protocol engine into the inventory ingestion gateway.
package finaleftp

import (
	"context"
	"fmt"
	"net"
	"path"
	"strings"

	log "github.com/fclairamb/go-log"
	"github.com/spf13/afero"

	"github.com/unifyhq/finale-ftp/config"
	"github.com/unifyhq/finale-ftp/fs"
	"github.com/unifyhq/finale-ftp/ftp"
	"github.com/unifyhq/finale-ftp/ingest"
	"github.com/unifyhq/finale-ftp/log/logruslog"
	"github.com/unifyhq/finale-ftp/log/oarklog"
	"github.com/unifyhq/finale-ftp/log/zaplog"
	"github.com/unifyhq/finale-ftp/models"
	"github.com/unifyhq/finale-ftp/store"
	"github.com/unifyhq/finale-ftp/vfs"
)

// Folder satisfies the protocol engine's per-session contract.
var _ ftp.ClientDriver = (*vfs.Folder)(nil)

// Gateway is the FTP ingestion gateway. It authenticates the configured
// credential pair, exposes the storage backend as each session's virtual
// folder, and feeds uploaded JSON documents to the ingestion pipeline.
type Gateway struct {
	conf     *config.Config
	user     models.User
	logger   log.Logger
	backend  afero.Fs
	store    store.Store
	pipeline *ingest.Pipeline
	server   *ftp.Server

	// ownStore records whether Stop should tear the store down.
	ownStore bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger overrides the logger built from the logging config section.
func WithLogger(logger log.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithStore injects a Store, bypassing the database config section.
func WithStore(st store.Store) Option {
	return func(g *Gateway) {
		g.store = st
	}
}

// WithFilesystem injects the upload root, bypassing the storage config
// section.
func WithFilesystem(backend afero.Fs) Option {
	return func(g *Gateway) {
		g.backend = backend
	}
}

// New builds a Gateway from conf. Unless injected via options, the logger,
// storage backend and database store are constructed from their config
// sections; a failing database connection is an error rather than a
// degraded start.
func New(ctx context.Context, conf *config.Config, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		conf: conf,
		user: models.User{Username: conf.FTP.User, Password: conf.FTP.Pass},
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		logger, err := buildLogger(conf.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		g.logger = logger
	}

	if g.backend == nil {
		backend, err := fs.LoadFs(&conf.Storage, g.logger.With("component", "fs"))
		if err != nil {
			return nil, fmt.Errorf("failed to load storage backend: %w", err)
		}
		g.backend = backend
	}

	if g.store == nil {
		st, err := store.NewPostgres(ctx, conf.Database.URL, g.logger.With("component", "store"))
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		g.store = st
		g.ownStore = true
	}

	g.pipeline = ingest.New(g.backend, g.store,
		g.logger.With("component", "ingest"),
		ingest.WithProcessedDir(conf.Ingest.ProcessedDir))

	serverOpts := []ftp.Option{
		ftp.WithDriver(g),
		ftp.WithLogger(g.logger.With("component", "ftp")),
		ftp.WithGreeting(conf.FTP.Greeting),
		ftp.WithPassiveIP(config.ResolvePassiveIP(&conf.FTP, g.logger)),
		ftp.WithIdleTimeout(conf.FTP.IdleTimeout),
	}
	if conf.FTP.PasvMinPort > 0 {
		serverOpts = append(serverOpts, ftp.WithPassivePortRange(conf.FTP.PasvMinPort, conf.FTP.PasvMaxPort))
	}

	server, err := ftp.NewServer(conf.FTP.ListenAddr, serverOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build server: %w", err)
	}
	g.server = server

	return g, nil
}

func buildLogger(conf config.LoggingConfig) (log.Logger, error) {
	switch conf.Backend {
	case "logrus":
		return logruslog.New(conf.Level, conf.Format)
	case "oark":
		return oarklog.Default(), nil
	default:
		return zaplog.New(conf.Level, conf.Format)
	}
}

// Authenticate checks the credential pair with exact string equality and, on
// success, hands the session its own folder over the shared backend.
func (g *Gateway) Authenticate(user, pass string) (ftp.ClientDriver, error) {
	g.logger.Info("login attempt", "user", user)

	if user != g.user.Username || pass != g.user.Password {
		g.logger.Warn("authentication failed", "user", user)
		return nil, fmt.Errorf("invalid username or password")
	}

	g.logger.Info("user successfully authenticated", "user", user)

	return vfs.NewFolder(g.backend, g.logger.With("component", "vfs"),
		vfs.WithUploadHook(g.onUpload)), nil
}

// ClientError surfaces session-level failures.
func (g *Gateway) ClientError(sessionID string, err error) {
	g.logger.Error("client error", "sessionId", sessionID, "err", err)
}

// onUpload routes a completed upload by extension. JSON documents go to the
// ingestion pipeline off the session goroutine so the client's 226 reply is
// never held up by database work.
func (g *Gateway) onUpload(virtualPath string) {
	switch strings.ToLower(path.Ext(virtualPath)) {
	case ".json":
		go func() {
			if err := g.pipeline.ProcessJSONFile(context.Background(), virtualPath); err != nil {
				g.logger.Error("error processing JSON file", "path", virtualPath, "err", err)
			}
		}()
	case ".csv":
		// TODO: CSV ingestion adapter, the upstream export emits both formats.
		g.logger.Info("csv upload stored, no ingestion adapter yet", "path", virtualPath)
	default:
		g.logger.Debug("upload stored", "path", virtualPath)
	}
}

// ListenAndServe runs the gateway until Stop is called.
func (g *Gateway) ListenAndServe() error {
	return g.server.ListenAndServe()
}

// Serve runs the gateway on an existing listener.
func (g *Gateway) Serve(l net.Listener) error {
	return g.server.Serve(l)
}

// Stop shuts the server down and releases the store when the gateway owns
// it.
func (g *Gateway) Stop() error {
	err := g.server.Shutdown()
	if g.ownStore && g.store != nil {
		g.store.Close()
	}
	return err
}
