// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/sigil-dev/tome/internal/reconcile"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// --- lipgloss styles ---

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// --- messages ---

type plannedMsg int

type appliedMsg reconcile.Event

type runDoneMsg struct{}

// progressModel renders a progress bar for one build or sync run.
type progressModel struct {
	title  string
	bar    progress.Model
	total  int
	done   int
	failed int
	last   string
}

func newProgressModel(title string) progressModel {
	return progressModel{
		title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case plannedMsg:
		m.total = int(msg)
	case appliedMsg:
		m.done++
		if msg.Outcome == reconcile.OutcomeFailed {
			m.failed++
		}
		m.last = string(msg.Op) + " " + msg.Path
	case runDoneMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title) + "\n")

	pct := 1.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	fmt.Fprintf(&b, "%s %d/%d", m.bar.ViewAs(pct), m.done, m.total)
	if m.failed > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("  %d failed", m.failed)))
	}
	b.WriteString("\n")
	if m.last != "" {
		b.WriteString(dimStyle.Render(m.last) + "\n")
	}
	return b.String()
}

// teaObserver forwards engine progress to a running bubbletea program.
type teaObserver struct {
	p *tea.Program
}

func (o teaObserver) OnPlanned(total int)          { o.p.Send(plannedMsg(total)) }
func (o teaObserver) OnApplied(ev reconcile.Event) { o.p.Send(appliedMsg(ev)) }

// logObserver reports engine progress through slog when no terminal is attached.
type logObserver struct {
	logger *slog.Logger
	total  int
	done   int
}

func (o *logObserver) OnPlanned(total int) {
	o.total = total
	o.logger.Info("applying changes", "total", total)
}

func (o *logObserver) OnApplied(ev reconcile.Event) {
	o.done++
	attrs := []any{"op", string(ev.Op), "path", ev.Path, "outcome", string(ev.Outcome), "progress", fmt.Sprintf("%d/%d", o.done, o.total)}
	if ev.Err != nil {
		o.logger.Warn("file processed", append(attrs, "error", ev.Err)...)
		return
	}
	o.logger.Debug("file processed", attrs...)
}

type runFunc func(ctx context.Context, obs reconcile.Observer) (*reconcile.Report, error)

// runWithProgress runs fn with a progress bar when out is a terminal and
// with slog progress otherwise. Interrupting the bar cancels the run.
func runWithProgress(ctx context.Context, out io.Writer, title string, fn runFunc) (*reconcile.Report, error) {
	f, ok := out.(*os.File)
	if !ok || !isTerminal(f) {
		return fn(ctx, &logObserver{logger: slog.Default()})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(title), tea.WithOutput(f), tea.WithInput(nil))

	var (
		report *reconcile.Report
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		report, runErr = fn(ctx, teaObserver{p: p})
		p.Send(runDoneMsg{})
	}()

	_, teaErr := p.Run()
	cancel()
	<-done

	if teaErr != nil && runErr == nil {
		return report, tomeerr.Errorf(tomeerr.CodeCLISetupFailure, "progress display: %w", teaErr)
	}
	return report, runErr
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printReport writes a styled summary of a finished run.
func printReport(w io.Writer, storeName string, r *reconcile.Report) {
	headline := fmt.Sprintf("%s %s: %d added, %d updated, %d deleted, %d unchanged",
		r.Mode, storeName, r.Added, r.Updated, r.Deleted, r.Unchanged)
	if r.Failed > 0 {
		_, _ = fmt.Fprintln(w, errorStyle.Render("✗ "+headline))
	} else {
		_, _ = fmt.Fprintln(w, successStyle.Render("✓ "+headline))
	}

	if r.Skipped > 0 {
		_, _ = fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("  %d skipped", r.Skipped)))
		for _, s := range r.Skips {
			_, _ = fmt.Fprintln(w, dimStyle.Render("    "+s.Error()))
		}
	}
	if r.Failed > 0 {
		_, _ = fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("  %d failed", r.Failed)))
		for _, fe := range r.Failures {
			_, _ = fmt.Fprintln(w, errorStyle.Render("    "+fe.Error()))
		}
	}
	_, _ = fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  run %s took %s", r.RunID, r.Duration().Round(time.Millisecond))))
}

// printPlan writes the changes a sync would apply without applying them.
func printPlan(w io.Writer, storeName string, p *reconcile.Plan) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Plan for %s: %d to delete, %d to add, %d to update, %d unchanged",
		storeName, len(p.Deletions), len(p.Additions), len(p.Updates), p.Unchanged)))
	for _, e := range p.Deletions {
		_, _ = fmt.Fprintf(w, "  - %s\n", e.Path)
	}
	for _, rel := range p.Additions {
		_, _ = fmt.Fprintf(w, "  + %s\n", rel)
	}
	for _, u := range p.Updates {
		_, _ = fmt.Fprintf(w, "  ~ %s\n", u.Entry.Path)
	}
	if p.Deferred > 0 {
		_, _ = fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  %d new files deferred by file_limit", p.Deferred)))
	}
	for _, s := range p.Skips {
		_, _ = fmt.Fprintln(w, warnStyle.Render("  ! "+s.Error()))
	}
	if p.Empty() {
		_, _ = fmt.Fprintln(w, dimStyle.Render("  nothing to do"))
	}
}
