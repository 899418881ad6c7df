package storage

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// catalog is the subset of the repository the sweeper needs.
type catalog interface {
	Exists(ctx context.Context, username, relpath string) (bool, error)
}

// CleanupService periodically reconciles the upload tree with the catalog.
// A crash between writing a file and inserting its record can leave bytes
// on disk with no row; files older than the grace period with no catalog
// entry are removed, along with any preview artifact derived from them.
type CleanupService struct {
	repo        catalog
	uploadRoot  string
	previewRoot string
	age         time.Duration
	interval    time.Duration
	done        chan struct{}
}

// NewCleanupService creates a new orphan sweeper.
func NewCleanupService(repo catalog, uploadRoot, previewRoot string, age, interval time.Duration) *CleanupService {
	return &CleanupService{
		repo:        repo,
		uploadRoot:  uploadRoot,
		previewRoot: previewRoot,
		age:         age,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (cs *CleanupService) Start(ctx context.Context) {
	slog.Info("orphan sweeper started", "interval", cs.interval, "grace_period", cs.age)

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		// Run once immediately on start
		cs.runSweep(ctx)

		for {
			select {
			case <-ticker.C:
				cs.runSweep(ctx)
			case <-ctx.Done():
				slog.Info("orphan sweeper stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the sweeper has fully stopped.
func (cs *CleanupService) Wait() {
	<-cs.done
}

func (cs *CleanupService) runSweep(ctx context.Context) {
	cutoff := time.Now().Add(-cs.age)

	entries, err := os.ReadDir(cs.uploadRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to read upload root", "error", err)
		}
		return
	}

	var removed int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		removed += cs.sweepUser(ctx, entry.Name(), cutoff)
	}

	if removed > 0 {
		slog.Info("sweep cycle complete", "orphans_removed", removed)
	}
}

func (cs *CleanupService) sweepUser(ctx context.Context, user string, cutoff time.Time) int {
	userDir := filepath.Join(cs.uploadRoot, user)

	var removed int
	err := filepath.WalkDir(userDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}

		rel, err := filepath.Rel(userDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		exists, err := cs.repo.Exists(ctx, user, rel)
		if err != nil {
			slog.Error("failed to check catalog during sweep", "user", user, "relpath", rel, "error", err)
			return nil
		}
		if exists {
			return nil
		}

		if err := os.Remove(path); err != nil {
			slog.Error("failed to remove orphaned file", "path", path, "error", err)
			return nil
		}
		// Remove the preview derived from the orphan, if any.
		os.Remove(filepath.Join(cs.previewRoot, user, filepath.FromSlash(rel)+".jpg"))

		removed++
		slog.Info("removed orphaned file", "user", user, "relpath", rel)
		return nil
	})
	if err != nil {
		slog.Error("sweep walk failed", "user", user, "error", err)
	}
	return removed
}
