package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nixlim/herd-top/internal/activity"
	"github.com/nixlim/herd-top/internal/alerts"
	"github.com/nixlim/herd-top/internal/errors"
	"github.com/nixlim/herd-top/internal/inventory"
	"github.com/nixlim/herd-top/internal/tui"
)

func runDashboard(_ *cobra.Command, _ []string) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}

	farmID, err := a.farmID()
	if err != nil {
		a.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cycles started by the bus reach the model only through this hook.
	var program atomic.Pointer[tea.Program]
	agg := a.newAggregator(farmID, alerts.WithOnRefresh(func(u alerts.Update) {
		if p := program.Load(); p != nil {
			p.Send(tui.RefreshedMsg(u))
		}
	}))
	cache := a.newHeaderCache()
	detach := cache.Attach(a.bus)
	feed := activity.NewRingBuffer(a.cfg.Display.ActivityBufferSize)
	notifier := alerts.NewPlatformNotifier(a.cfg.Alerts.SystemNotify, a.logger)

	shutdownMgr := tui.NewShutdownManager()
	shutdownMgr.StopAggregator = func() {
		agg.Stop()
		detach()
	}
	shutdownMgr.CancelRequests = cancel
	shutdownMgr.Cleanup = a.Close

	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			if err := shutdownMgr.Shutdown(); err != nil {
				a.logger.Warnw("shutdown incomplete", "error", err)
			}
		})
	}

	model := tui.NewModel(a.cfg,
		tui.WithContext(ctx),
		tui.WithAlertCenter(agg),
		tui.WithBadgeSource(cache),
		tui.WithActivityFeed(feed),
		tui.WithEmitter(a.bus),
		tui.WithNotifier(notifier),
		tui.WithDraftFactory(func(farmID string) *inventory.Draft { return a.newDraft(farmID) }),
		tui.WithPersistenceFlag(a.persistent),
		tui.WithOnShutdown(shutdown),
	)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	program.Store(p)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			shutdown()
			p.Quit()
		case <-ctx.Done():
		}
	}()

	_, err = p.Run()
	shutdown()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "running dashboard")
	}
	return nil
}
