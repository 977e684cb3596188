// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package reconcile

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sigil-dev/tome/internal/store"
)

// Update is a stored entry whose file content changed on disk.
type Update struct {
	Entry   *store.Entry
	Content string
}

// Plan is the set of mutations that brings a store in line with its
// directory. Computing a plan never mutates the store.
type Plan struct {
	Mode      Mode
	Deletions []*store.Entry
	Additions []string
	Updates   []Update
	Unchanged int
	// Deferred counts eligible new files left out by the file limit.
	Deferred int
	// Skips are files or directories that could not be classified. Stored
	// entries beneath them are neither updated nor deleted.
	Skips []FileError
}

// Total is the number of mutations the plan applies.
func (p *Plan) Total() int {
	return len(p.Deletions) + len(p.Additions) + len(p.Updates)
}

// Empty reports whether applying the plan would change nothing.
func (p *Plan) Empty() bool {
	return p.Total() == 0
}

// Plan classifies every stored entry and eligible file for a sync run.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	return e.plan(ctx, ModeSync)
}

func (e *Engine) plan(ctx context.Context, mode Mode) (*Plan, error) {
	ctx, span := tracer.Start(ctx, "reconcile.plan")
	defer span.End()

	p := &Plan{Mode: mode}

	// Phase 1: store_set. A build starts from an empty store.
	stored := map[string]*store.Entry{}
	if mode == ModeSync {
		entries, err := e.store.GetAll(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, entry := range entries {
			stored[entry.Path] = entry
		}
	}

	// Phase 1: disk_set, classifying each file as it is found.
	onDisk := map[string]bool{}
	held := map[string]bool{}
	var failedDirs []string
	var additions []string

	for rel, err := range e.walker.Walk(ctx) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if rel == "." || rel == "" {
				span.RecordError(err)
				return nil, err
			}
			e.logger.Warn("skipping unreadable directory", "path", rel, "error", err)
			failedDirs = append(failedDirs, rel)
			p.Skips = append(p.Skips, FileError{Path: rel, Op: OpRead, Err: err})
			continue
		}

		entry, known := stored[rel]
		data, eligible, err := e.filter.Load(rel)
		if err != nil {
			e.logger.Warn("skipping unreadable file", "path", rel, "error", err)
			op := OpAdd
			if known {
				op = OpUpdate
				held[rel] = true
			}
			p.Skips = append(p.Skips, FileError{Path: rel, Op: op, Err: err})
			continue
		}
		if !eligible {
			continue
		}
		onDisk[rel] = true

		switch {
		case !known && len(data) == 0:
			p.Skips = append(p.Skips, FileError{Path: rel, Op: OpAdd, Err: ErrEmptyFile})
		case !known:
			// Phase 3: additions.
			additions = append(additions, rel)
		case string(data) == entry.Content:
			p.Unchanged++
		case len(data) == 0:
			p.Skips = append(p.Skips, FileError{Path: rel, Op: OpUpdate, Err: ErrEmptyFile})
		default:
			// Phase 4: updates.
			p.Updates = append(p.Updates, Update{Entry: entry, Content: string(data)})
		}
	}

	// Phase 2: deletions. Computed against the full disk_set, before the
	// file limit trims additions.
	for path, entry := range stored {
		if onDisk[path] || held[path] || underAny(path, failedDirs) {
			continue
		}
		p.Deletions = append(p.Deletions, entry)
	}

	slices.SortFunc(p.Deletions, func(a, b *store.Entry) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(p.Updates, func(a, b Update) int { return cmp.Compare(a.Entry.ID, b.Entry.ID) })
	slices.Sort(additions)

	if limit := e.cfg.FileLimit; limit > 0 && len(additions) > limit {
		p.Deferred = len(additions) - limit
		additions = additions[:limit]
	}
	p.Additions = additions

	span.SetAttributes(
		attribute.String("tome.mode", string(mode)),
		attribute.Int("tome.plan.deletions", len(p.Deletions)),
		attribute.Int("tome.plan.additions", len(p.Additions)),
		attribute.Int("tome.plan.updates", len(p.Updates)),
		attribute.Int("tome.plan.unchanged", p.Unchanged),
		attribute.Int("tome.plan.skipped", len(p.Skips)),
	)
	return p, nil
}

func underAny(path string, dirs []string) bool {
	for _, d := range dirs {
		if strings.HasPrefix(path, d+"/") {
			return true
		}
	}
	return false
}

