package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nixlim/herd-top/internal/alerts"
	"github.com/nixlim/herd-top/internal/alerts/sources"
	"github.com/nixlim/herd-top/internal/api"
	"github.com/nixlim/herd-top/internal/config"
	"github.com/nixlim/herd-top/internal/errors"
	"github.com/nixlim/herd-top/internal/inventory"
	"github.com/nixlim/herd-top/internal/logger"
	"github.com/nixlim/herd-top/internal/storage"
)

// app holds the components every command shares.
type app struct {
	cfg        config.Config
	logger     *zap.SugaredLogger
	client     *api.Client
	registry   *alerts.Registry
	bus        *alerts.Bus
	kv         storage.KV
	persistent bool
	retries    *inventory.RetryStore

	closeLogger func()
}

func loadConfig(path string) (config.Config, error) {
	var (
		res *config.LoadResult
		err error
	)
	if path != "" {
		res, err = config.LoadFrom(path)
	} else {
		res, err = config.Load()
	}
	if err != nil {
		return config.Config{}, errors.WithHintf(err, "check %s", configPathOrDefault(path))
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "herd-top: config warning: %s\n", w)
	}
	return res.Config, nil
}

func configPathOrDefault(path string) string {
	if path != "" {
		return path
	}
	return config.DefaultPath()
}

func newApp(f globalFlags) (*app, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.farm != "" {
		cfg.Farm.DefaultID = f.farm
	}
	if s := strings.TrimSpace(f.scope); s != "" {
		cfg.Storage.Scope = s
	}

	log, closeLogger, err := logger.New(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "initialising logger")
	}

	client, err := api.New(cfg.API, api.TokenSourceFromConfig(cfg.API), log)
	if err != nil {
		closeLogger()
		return nil, err
	}

	registry := alerts.NewRegistry(log)
	sources.RegisterDefaults(registry, client, cfg.Alerts, log)

	kv, persistent := storage.NewKV(cfg.Storage, log, storage.WithPinnedPrefixes(inventory.RetryKeyPrefix))

	log.Infow("herd-top starting",
		"api", client.String(),
		"farm", cfg.Farm.DefaultID,
		"scope", cfg.Storage.Scope,
		"persistent", persistent,
	)

	return &app{
		cfg:         cfg,
		logger:      log,
		client:      client,
		registry:    registry,
		bus:         alerts.NewBus(),
		kv:          kv,
		persistent:  persistent,
		retries:     inventory.NewRetryStore(kv, log),
		closeLogger: closeLogger,
	}, nil
}

// farmID returns the selected farm or an error carrying a hint on how to
// pick one.
func (a *app) farmID() (string, error) {
	if a.cfg.Farm.DefaultID == "" {
		return "", errors.WithHint(errors.New("no farm selected"),
			"pass --farm or set [farm] default_id in the config file")
	}
	return a.cfg.Farm.DefaultID, nil
}

func (a *app) newAggregator(farmID string, opts ...alerts.AggregatorOption) *alerts.Aggregator {
	base := []alerts.AggregatorOption{
		alerts.WithMaxParallel(a.cfg.Alerts.MaxParallel),
		alerts.WithLogger(a.logger),
	}
	return alerts.NewAggregator(a.registry, a.bus, farmID, append(base, opts...)...)
}

func (a *app) newHeaderCache() *alerts.HeaderCache {
	ttl := time.Duration(a.cfg.Alerts.HeaderCacheTTLSeconds) * time.Second
	return alerts.NewHeaderCache(a.registry, ttl, a.cfg.Alerts.MaxParallel, a.logger)
}

func (a *app) newDraft(farmID string) *inventory.Draft {
	return inventory.NewDraft(farmID, a.retries, a.client, a.logger)
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		a.logger.Warnw("closing store failed", "error", err)
	}
	a.closeLogger()
}
