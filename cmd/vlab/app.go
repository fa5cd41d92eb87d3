package main

import (
	"context"
	"fmt"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/config"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/lab"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/remote"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/sandbox"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage/sqlite"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openStore() (*sqlite.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return sqlite.Open(cfg.Storage.DBPath)
}

// newRunner builds the configured sandbox backend. The returned func releases
// whatever the backend holds open.
func newRunner(ctx context.Context, cfg *config.Config) (sandbox.Runner, func(), error) {
	if cfg.Sandbox.Backend == remote.Backend {
		r, err := remote.NewRunner(ctx, cfg.Sandbox.RemoteBinary, cfg.Sandbox.RemoteEnv)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	}

	r, err := sandbox.New(cfg.Policy())
	if err != nil {
		return nil, nil, err
	}
	return r, func() {}, nil
}

// openService wires config, storage and the sandbox into a lab.Service and
// seeds an empty database. Callers must call the returned close func.
func openService(ctx context.Context) (*lab.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	runner, release, err := newRunner(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	closeAll := func() {
		release()
		store.Close()
	}

	svc := lab.NewService(store, runner, cfg.Sandbox.Timeout)
	if err := svc.Bootstrap(ctx, cfg.SeedData()); err != nil {
		closeAll()
		return nil, nil, err
	}
	return svc, closeAll, nil
}
