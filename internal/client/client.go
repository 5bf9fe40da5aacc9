package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/solvesync/internal/client/bulkimport"
	"github.com/openmined/solvesync/internal/client/config"
	"github.com/openmined/solvesync/internal/client/connectivity"
	"github.com/openmined/solvesync/internal/client/outbox"
	"github.com/openmined/solvesync/internal/client/sync"
	"github.com/openmined/solvesync/internal/events"
	"github.com/openmined/solvesync/internal/mutation"
	"github.com/openmined/solvesync/internal/solvesdk"
	"github.com/openmined/solvesync/internal/utils"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Client wires the outbox, the remote sdk, the sync manager, the importer
// and the control plane together. Lifecycle is New, Start, Close.
type Client struct {
	config       *config.Config
	bus          *events.Bus
	backend      *outbox.SqliteBackend
	store        *outbox.Store
	sdk          *solvesdk.SDK
	sync         *sync.SyncManager
	importer     *bulkimport.Importer
	controlPlane *ControlPlaneServer
}

type Option func(*options)

type options struct {
	importProgress bulkimport.ProgressFunc
	controlPlane   bool
}

// WithImportProgress reports bulk import progress to fn.
func WithImportProgress(fn bulkimport.ProgressFunc) Option {
	return func(o *options) {
		o.importProgress = fn
	}
}

// WithoutControlPlane skips the http control plane. Used by one-shot commands.
func WithoutControlPlane() Option {
	return func(o *options) {
		o.controlPlane = false
	}
}

func New(cfg *config.Config, opts ...Option) (*Client, error) {
	o := &options{controlPlane: true}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := utils.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	bus := events.NewBus()

	// the outbox keeps working on its mirror when sqlite cannot be opened
	var primary outbox.Backend
	backend, err := outbox.OpenSqliteBackend(cfg.OutboxPath())
	if err != nil {
		slog.Error("outbox primary unavailable, using backup only", "path", cfg.OutboxPath(), "error", err)
		backend = nil
	} else {
		primary = backend
	}

	blobs, err := outbox.NewFileBlobStore(cfg.BackupDir())
	if err != nil {
		if backend != nil {
			backend.Close()
		}
		return nil, fmt.Errorf("failed to open outbox backup: %w", err)
	}
	store := outbox.NewStore(primary, outbox.NewMirror(blobs), outbox.WithPublisher(bus))

	sdk, err := solvesdk.New(&solvesdk.Config{BaseURL: cfg.ServerURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create sdk: %w", err)
	}

	mgr, err := sync.NewManager(store, sdk, bus, connectivity.Config{
		SettleDelay:   cfg.SettleDelay,
		ProbeInterval: cfg.ProbeInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sync manager: %w", err)
	}

	importOpts := []bulkimport.ImporterOption{
		bulkimport.WithChunkSize(cfg.ImportChunkSize),
		bulkimport.WithPublisher(bus),
		// a full import supersedes whatever was recorded offline
		bulkimport.WithOnSuccess(store.Clear),
	}
	if o.importProgress != nil {
		importOpts = append(importOpts, bulkimport.WithProgress(o.importProgress))
	}
	importer := bulkimport.NewImporter(sdk, importOpts...)

	c := &Client{
		config:   cfg,
		bus:      bus,
		backend:  backend,
		store:    store,
		sdk:      sdk,
		sync:     mgr,
		importer: importer,
	}

	if o.controlPlane {
		if cfg.HTTPToken == "" {
			cfg.HTTPToken = utils.TokenHex()
		}
		c.controlPlane, err = NewControlPlaneServer(&ControlPlaneConfig{
			Addr:      cfg.HTTPAddr,
			AuthToken: cfg.HTTPToken,
		}, &RouteDeps{
			Queue:    store,
			Sync:     mgr,
			Importer: importer,
			Events:   bus,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create control plane: %w", err)
		}
	}

	// recover entries left in the mirror by a previous run
	store.Open(context.Background())

	return c, nil
}

// Start runs the sync manager and the control plane until ctx is done.
func (c *Client) Start(ctx context.Context) error {
	slog.Info("solvesync client start", "datadir", c.config.DataDir, "server", c.config.ServerURL, "pending", c.store.Count(ctx))

	eg, egCtx := errgroup.WithContext(ctx)

	if err := c.sync.Start(egCtx); err != nil {
		return fmt.Errorf("failed to start sync manager: %w", err)
	}

	if c.controlPlane != nil {
		eg.Go(func() error {
			return c.controlPlane.Start(egCtx)
		})
		eg.Go(func() error {
			<-egCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return c.controlPlane.Stop(shutdownCtx)
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		return c.sync.Stop()
	})

	err := eg.Wait()
	slog.Info("solvesync client stop")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Record delivers m to the server, or queues it if the server cannot be reached.
func (c *Client) Record(ctx context.Context, m mutation.Mutation) (*sync.RecordResult, error) {
	return c.sync.Record(ctx, m)
}

func (c *Client) Close() error {
	c.sdk.Close()
	if c.backend != nil {
		return c.backend.Close()
	}
	return nil
}

func (c *Client) Config() *config.Config {
	return c.config
}

func (c *Client) Outbox() *outbox.Store {
	return c.store
}

func (c *Client) Sync() *sync.SyncManager {
	return c.sync
}

func (c *Client) Importer() *bulkimport.Importer {
	return c.importer
}

func (c *Client) Events() *events.Bus {
	return c.bus
}
