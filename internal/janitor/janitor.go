// Package janitor detects and cleans orphaned identities: emails referenced
// by other users' friend or group data whose account no longer exists.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/divvyup/divvy/internal/cleanup"
	"github.com/divvyup/divvy/internal/identity"
	"github.com/divvyup/divvy/internal/metrics"
	"github.com/divvyup/divvy/internal/storage"
)

// Report summarizes one janitor run.
type Report struct {
	OrphansFound     int `json:"orphans_found"`
	OrphansCleaned   int `json:"orphans_cleaned"`
	RemainingOrphans int `json:"remaining_orphans"`
	Failures         int `json:"failures"`
}

// Janitor is the periodic batch job. Each tick samples a bounded page of
// friend and group rows, checks every referenced email against the account
// table, and fully cleans at most MaxPerRun orphans. Remaining orphans wait
// for the next tick; the design is convergent, not transactional.
type Janitor struct {
	store   storage.Store
	deleter *cleanup.Deleter

	// Interval between runs.
	Interval time.Duration

	// PageSize bounds how many friend rows and groups one run samples.
	PageSize int

	// MaxPerRun bounds how many orphans one run cleans.
	MaxPerRun int
}

// New creates a Janitor with the given bounds.
func New(store storage.Store, deleter *cleanup.Deleter, interval time.Duration, pageSize, maxPerRun int) *Janitor {
	return &Janitor{
		store:     store,
		deleter:   deleter,
		Interval:  interval,
		PageSize:  pageSize,
		MaxPerRun: maxPerRun,
	}
}

// Run ticks until the context is cancelled. Intended as a background
// goroutine started from main.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	slog.Info("janitor started",
		"interval", j.Interval,
		"page_size", j.PageSize,
		"max_per_run", j.MaxPerRun,
	)
	for {
		select {
		case <-ctx.Done():
			slog.Info("janitor stopped")
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				slog.Error("janitor run failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single bounded run and returns its report.
//
// One bad orphan must not block the others: per-orphan failures are logged
// as structured records and counted, and the run continues.
func (j *Janitor) RunOnce(ctx context.Context) (*Report, error) {
	start := time.Now()
	defer func() {
		metrics.JanitorRunDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	orphans, err := j.findOrphans(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{OrphansFound: len(orphans)}
	metrics.OrphansFoundTotal.Add(float64(len(orphans)))

	for _, email := range orphans {
		if report.OrphansCleaned >= j.MaxPerRun {
			break
		}
		counts, skipped, err := j.deleter.CleanupOrphan(ctx, email)
		if err != nil {
			report.Failures++
			slog.Error("orphan cleanup failed",
				"email", email,
				"error", err,
			)
			continue
		}
		if skipped {
			// Account reappeared between detection and cleanup.
			slog.Info("orphan no longer orphaned, skipping", "email", email)
			continue
		}
		report.OrphansCleaned++
		metrics.OrphansCleanedTotal.Inc()
		slog.Info("orphan cleaned",
			"email", email,
			"friends_deleted", counts.FriendsDeleted,
			"friends_unlinked", counts.FriendsUnlinked,
			"groups_deleted", counts.GroupsDeleted,
			"expenses_deleted", counts.ExpensesDeleted,
		)
	}

	report.RemainingOrphans = report.OrphansFound - report.OrphansCleaned - report.Failures
	if report.RemainingOrphans < 0 {
		report.RemainingOrphans = 0
	}

	slog.Info("janitor run complete",
		"orphans_found", report.OrphansFound,
		"orphans_cleaned", report.OrphansCleaned,
		"remaining_orphans", report.RemainingOrphans,
		"failures", report.Failures,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// findOrphans samples a bounded page of friend rows and groups, collects the
// distinct emails they reference, and returns (sorted, for determinism) the
// ones with no matching account.
func (j *Janitor) findOrphans(ctx context.Context) ([]string, error) {
	referenced := map[string]struct{}{}

	friends, err := j.store.SampleFriendRows(ctx, j.PageSize)
	if err != nil {
		return nil, err
	}
	for _, f := range friends {
		addEmail(referenced, f.OwnerEmail)
		if f.HasLinkedAccount {
			addEmail(referenced, f.LinkedAccountEmail)
		}
	}

	groups, err := j.store.SampleGroups(ctx, j.PageSize)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		addEmail(referenced, g.OwnerEmail)
		for _, m := range g.Members {
			addEmail(referenced, m.LinkedEmail)
		}
	}

	var orphans []string
	for email := range referenced {
		_, err := j.store.GetAccountByEmail(ctx, email)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		orphans = append(orphans, email)
	}
	sort.Strings(orphans)
	return orphans, nil
}

func addEmail(set map[string]struct{}, email string) {
	if n := identity.Normalize(email); n != "" {
		set[n] = struct{}{}
	}
}
