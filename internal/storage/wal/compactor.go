package wal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultRetainCount is the number of segments kept after compaction.
const DefaultRetainCount = 3

// Compactor trims session log segments made redundant by a snapshot.
// Without it the WAL directory grows without bound even though old
// segments replay state the snapshot already covers.
type Compactor struct {
	walDir      string
	retainCount int
}

// CompactorOption configures the Compactor.
type CompactorOption func(*Compactor)

// WithRetainCount sets the number of segments to retain.
func WithRetainCount(count int) CompactorOption {
	return func(c *Compactor) {
		if count > 0 {
			c.retainCount = count
		}
	}
}

// NewCompactor creates a compactor for the given WAL directory.
func NewCompactor(walDir string, opts ...CompactorOption) *Compactor {
	c := &Compactor{
		walDir:      walDir,
		retainCount: DefaultRetainCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compact removes segments fully covered by the given snapshot offset,
// always retaining at least retainCount segments.
//
// snapshotOffset is composite: segmentID<<32 | offsetWithinSegment. A
// segment is deletable only when its ID is strictly below the snapshot
// segment, since the snapshot segment itself may hold records past the
// snapshot point.
func (c *Compactor) Compact(snapshotOffset uint64) error {
	files, err := c.listSegments()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	snapshotSegmentID := snapshotOffset >> 32

	var toDelete []string
	for _, file := range files {
		segmentID, ok := parseSegmentFilename(filepath.Base(file))
		if !ok {
			continue
		}
		if segmentID < snapshotSegmentID {
			toDelete = append(toDelete, file)
		}
	}

	// Back off deletions until retainCount segments survive.
	if len(files)-len(toDelete) < c.retainCount {
		spare := c.retainCount - (len(files) - len(toDelete))
		if spare > len(toDelete) {
			spare = len(toDelete)
		}
		toDelete = toDelete[:len(toDelete)-spare]
	}

	return c.removeFiles(toDelete)
}

// NeedsCompaction reports whether total segment size exceeds threshold.
func (c *Compactor) NeedsCompaction(threshold int64) bool {
	total, _ := c.TotalSize()
	return total > threshold
}

// TotalSize returns the combined size of all segments in bytes.
func (c *Compactor) TotalSize() (int64, error) {
	files, err := c.listSegments()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// FileCount returns the number of segments on disk.
func (c *Compactor) FileCount() (int, error) {
	files, err := c.listSegments()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// CleanAll removes every segment. Used when discarding a store.
func (c *Compactor) CleanAll() error {
	files, err := c.listSegments()
	if err != nil {
		return err
	}
	return c.removeFiles(files)
}

// listSegments returns segment paths sorted oldest first. A missing
// directory is treated as empty.
func (c *Compactor) listSegments() ([]string, error) {
	entries, err := os.ReadDir(c.walDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := parseSegmentFilename(entry.Name()); ok {
			files = append(files, filepath.Join(c.walDir, entry.Name()))
		}
	}

	// Segment filenames embed a zero-padded index, so lexical order is
	// chronological order.
	sort.Strings(files)
	return files, nil
}

func (c *Compactor) removeFiles(files []string) error {
	var errs []error
	for _, file := range files {
		if err := os.Remove(file); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", file, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("wal: failed to delete %d files: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
