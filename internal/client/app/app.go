// Package app wires the client core together: credential store, gateway,
// route guard, collection stores, mutation coordinator and transfer
// handler. It is the only place that knows how they fit.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/client/api"
	"github.com/atinyakov/MedKeeper/internal/client/gateway"
	"github.com/atinyakov/MedKeeper/internal/client/guard"
	"github.com/atinyakov/MedKeeper/internal/client/mutation"
	"github.com/atinyakov/MedKeeper/internal/client/transfer"
	"github.com/atinyakov/MedKeeper/internal/config"
	"github.com/atinyakov/MedKeeper/internal/logger"
	"github.com/atinyakov/MedKeeper/internal/session"
	"github.com/atinyakov/MedKeeper/internal/storage/minio"
)

// App is a running client.
type App struct {
	opts *config.Options
	log  *zap.Logger

	Creds     *session.Store
	Gateway   *gateway.Gateway
	API       *api.Client
	Transfers *transfer.Registry
	Mutations *mutation.Coordinator
	Router    *guard.Router
	// Archive is nil unless an object storage endpoint is configured.
	Archive transfer.Sink

	stopReaper context.CancelFunc
	unwatch    []func()

	mu     sync.Mutex
	nextID int
	views  map[int]func()
}

// New builds an App from validated options. The persisted credential, if
// any, is restored.
func New(ctx context.Context, opts *config.Options, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)

	var fileOpts []session.FileOption
	if opts.SealKeyFile != "" {
		sealer, err := session.NewSealerFromFile(opts.SealKeyFile)
		if err != nil {
			return nil, err
		}
		fileOpts = append(fileOpts, session.WithSealer(sealer))
	}
	creds, err := session.New(session.NewFilePersister(opts.TokenFile, fileOpts...), log.Named("session"))
	if err != nil {
		return nil, err
	}

	httpClient, err := gateway.NewHTTPClient(gateway.TLSFiles{
		CAFile:   opts.CAFile,
		CertFile: opts.CertFile,
		KeyFile:  opts.KeyFile,
	}, opts.RequestTimeout.Std())
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(gateway.Config{
		BaseURL:    opts.APIURL,
		HTTPClient: httpClient,
		Logger:     log.Named("gateway"),
	}, creds)
	if err != nil {
		return nil, err
	}

	reg, err := transfer.NewRegistry(opts.BlobDir, log.Named("transfer"))
	if err != nil {
		return nil, err
	}
	client := api.New(gw, transfer.NewHandler(gw, reg, log.Named("transfer")))

	a := &App{
		opts:      opts,
		log:       log,
		Creds:     creds,
		Gateway:   gw,
		API:       client,
		Transfers: reg,
		Mutations: mutation.New(client, log.Named("mutation")),
		Router:    guard.NewRouter(guard.New(creds, log.Named("guard"))),
		views:     make(map[int]func()),
	}

	if opts.Archive.Enabled() {
		archive, err := minio.New(ctx, minio.Config{
			Endpoint:  opts.Archive.Endpoint,
			AccessKey: opts.Archive.AccessKey,
			SecretKey: opts.Archive.SecretKey,
			Bucket:    opts.Archive.Bucket,
			Prefix:    opts.Archive.Prefix,
			UseSSL:    opts.Archive.UseSSL,
		})
		if err != nil {
			_ = reg.Close()
			return nil, err
		}
		a.Archive = archive
	}

	a.unwatch = append(a.unwatch,
		creds.OnClear(a.teardown),
		a.Router.Watch(creds),
	)

	ttl := opts.HandleTTL.Std()
	reaperCtx, stop := context.WithCancel(context.Background())
	a.stopReaper = stop
	reg.StartReaper(reaperCtx, max(ttl/2, time.Second), ttl)

	return a, nil
}

// Options returns the options the App was built with.
func (a *App) Options() *config.Options { return a.opts }

// teardown is the single clearing procedure: it runs after every drop of
// the credential, whether by logout or by a rejected request.
func (a *App) teardown(reason session.Reason) {
	n := a.closeViews()
	if err := a.Transfers.ReleaseAll(); err != nil {
		a.log.Error("failed to release downloads", zap.Error(err))
	}
	a.log.Info("session torn down", zap.Stringer("reason", reason), zap.Int("views", n))
}

// ExportReport copies a downloaded report into dir, or into the archive
// when dir is empty.
func (a *App) ExportReport(ctx context.Context, h *transfer.Handle, dir string) (string, error) {
	switch {
	case dir != "":
		return h.Export(ctx, transfer.FileSink{Dir: dir})
	case a.Archive != nil:
		return h.Export(ctx, a.Archive)
	}
	return "", errors.New("no export target: pass a directory or configure an archive")
}

// Close releases every view and download and stops background work.
func (a *App) Close() error {
	for _, cancel := range a.unwatch {
		cancel()
	}
	a.stopReaper()
	a.closeViews()
	if err := a.Transfers.Close(); err != nil {
		return fmt.Errorf("close transfers: %w", err)
	}
	return nil
}
