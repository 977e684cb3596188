// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/tome/internal/reconcile"
	"github.com/sigil-dev/tome/internal/store"
)

func TestProgressModel_TracksEvents(t *testing.T) {
	var m tea.Model = newProgressModel("sync notes")

	m, cmd := m.Update(plannedMsg(2))
	assert.Nil(t, cmd)
	m, _ = m.Update(appliedMsg{Op: reconcile.OpAdd, Path: "a.md", Outcome: reconcile.OutcomeApplied})
	m, _ = m.Update(appliedMsg{Op: reconcile.OpUpdate, Path: "b.md", Outcome: reconcile.OutcomeFailed, Err: errors.New("down")})

	view := m.View()
	assert.Contains(t, view, "sync notes")
	assert.Contains(t, view, "2/2")
	assert.Contains(t, view, "1 failed")
	assert.Contains(t, view, "update b.md")

	_, cmd = m.Update(runDoneMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestLogObserver_LogsProgress(t *testing.T) {
	buf := new(bytes.Buffer)
	obs := &logObserver{logger: slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	obs.OnPlanned(2)
	obs.OnApplied(reconcile.Event{Op: reconcile.OpAdd, Path: "a.md", Outcome: reconcile.OutcomeApplied})
	obs.OnApplied(reconcile.Event{Op: reconcile.OpAdd, Path: "b.md", Outcome: reconcile.OutcomeFailed, Err: errors.New("down")})

	out := buf.String()
	assert.Contains(t, out, "total=2")
	assert.Contains(t, out, "progress=1/2")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "error=down")
}

func TestRunWithProgress_NonTerminalUsesLogObserver(t *testing.T) {
	var got reconcile.Observer
	report, err := runWithProgress(context.Background(), new(bytes.Buffer), "build",
		func(_ context.Context, obs reconcile.Observer) (*reconcile.Report, error) {
			got = obs
			return &reconcile.Report{Mode: reconcile.ModeBuild, Added: 1}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.IsType(t, &logObserver{}, got)
}

func TestPrintReport(t *testing.T) {
	start := time.Now()
	r := &reconcile.Report{
		RunID:      "run-1",
		Mode:       reconcile.ModeSync,
		Added:      1,
		Updated:    2,
		Deleted:    3,
		Unchanged:  4,
		Skipped:    1,
		Failed:     1,
		Skips:      []reconcile.FileError{{Path: "empty.md", Op: reconcile.OpAdd, Err: reconcile.ErrEmptyFile}},
		Failures:   []reconcile.FileError{{Path: "b.md", Op: reconcile.OpUpdate, Err: errors.New("embedding down")}},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}

	buf := new(bytes.Buffer)
	printReport(buf, "notes", r)

	out := buf.String()
	assert.Contains(t, out, "sync notes: 1 added, 2 updated, 3 deleted, 4 unchanged")
	assert.Contains(t, out, "1 skipped")
	assert.Contains(t, out, "add empty.md: file is empty")
	assert.Contains(t, out, "update b.md: embedding down")
	assert.Contains(t, out, "run run-1 took 1.5s")
}

func TestPrintPlan(t *testing.T) {
	p := &reconcile.Plan{
		Deletions: []*store.Entry{{ID: 1, Path: "gone.md"}},
		Additions: []string{"new.md"},
		Updates:   []reconcile.Update{{Entry: &store.Entry{ID: 2, Path: "edited.md"}, Content: "x"}},
		Unchanged: 5,
		Deferred:  3,
	}

	buf := new(bytes.Buffer)
	printPlan(buf, "notes", p)

	out := buf.String()
	assert.Contains(t, out, "Plan for notes: 1 to delete, 1 to add, 1 to update, 5 unchanged")
	assert.Contains(t, out, "- gone.md")
	assert.Contains(t, out, "+ new.md")
	assert.Contains(t, out, "~ edited.md")
	assert.Contains(t, out, "3 new files deferred")

	buf.Reset()
	printPlan(buf, "notes", &reconcile.Plan{})
	assert.Contains(t, buf.String(), "nothing to do")
}
