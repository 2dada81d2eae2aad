// Package tui renders terminal progress for index runs.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"coderag/internal/index"
)

// ErrInterrupted is returned when the user quits before the run finishes.
var ErrInterrupted = errors.New("indexing interrupted")

// RunFunc performs an index run, reporting each file to progress.
type RunFunc func(ctx context.Context, progress index.ProgressFunc) (*index.Stats, error)

// indexProgressMsg is sent after each file.
type indexProgressMsg index.Progress

// indexDoneMsg is sent when the run returns.
type indexDoneMsg struct {
	stats *index.Stats
	err   error
}

type indexingModel struct {
	project string
	root    string

	spinner  spinner.Model
	bar      progress.Model
	progress index.Progress
	started  time.Time

	done        bool
	interrupted bool
	stats       *index.Stats
	err         error
}

func newIndexingModel(project, root string) indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return indexingModel{
		project: project,
		root:    root,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		started: time.Now(),
	}
}

func (m indexingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m indexingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-20, 10), 60)
		return m, nil
	case indexProgressMsg:
		m.progress = index.Progress(msg)
		return m, nil
	case indexDoneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m indexingModel) View() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  Indexing "+m.project) + "\n")
	b.WriteString(dimStyle.Render("  "+m.root) + "\n\n")

	if m.done {
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("  ✗ %v", m.err)) + "\n\n")
			return b.String()
		}
		b.WriteString(successStyle.Render("  ✓ Indexing complete") + "\n\n")
		b.WriteString(summary(m.stats))
		return b.String()
	}
	if m.interrupted {
		b.WriteString(warnStyle.Render("  Interrupted, stopping after the current file...") + "\n")
		return b.String()
	}

	p := m.progress
	fmt.Fprintf(&b, "  %s %s\n\n", m.spinner.View(), fraction(p))
	b.WriteString("  " + m.bar.ViewAs(ratio(p)) + "\n\n")
	if p.File != "" {
		b.WriteString("  " + labelStyle.Render("file") + dimStyle.Render(p.File) + "\n")
	}
	b.WriteString("  " + labelStyle.Render("chunks") + fmt.Sprint(p.TotalChunks) + "\n")
	b.WriteString("  " + labelStyle.Render("elapsed") + time.Since(m.started).Round(time.Second).String() + "\n\n")
	b.WriteString(dimStyle.Render("  q to stop") + "\n")
	return b.String()
}

func fraction(p index.Progress) string {
	if p.TotalFiles == 0 {
		return "Scanning files..."
	}
	return fmt.Sprintf("%d / %d files", p.ProcessedFiles, p.TotalFiles)
}

func ratio(p index.Progress) float64 {
	if p.TotalFiles == 0 {
		return 0
	}
	return float64(p.ProcessedFiles) / float64(p.TotalFiles)
}

// summary formats final run statistics, one labelled line each.
func summary(s *index.Stats) string {
	if s == nil {
		return ""
	}
	rows := [][2]string{
		{"files", fmt.Sprintf("%d total, %d indexed, %d unchanged", s.FilesTotal, s.FilesIndexed, s.FilesSkipped)},
		{"chunks", fmt.Sprintf("%d stored (%d new)", s.TotalChunks, s.ChunksAdded)},
		{"elapsed", s.Duration.Round(time.Millisecond).String()},
	}
	if s.FilesRemoved > 0 {
		rows = append(rows, [2]string{"removed", fmt.Sprintf("%d files", s.FilesRemoved)})
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString("  " + labelStyle.Render(r[0]) + r[1] + "\n")
	}
	if s.FilesFailed > 0 {
		b.WriteString("  " + labelStyle.Render("failed") + warnStyle.Render(fmt.Sprintf("%d files (see log, retried next run)", s.FilesFailed)) + "\n")
	}
	return b.String()
}

// Summary renders s without styling, for non-interactive output.
func Summary(s *index.Stats) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("files:   %d total, %d indexed, %d unchanged, %d failed, %d removed\nchunks:  %d stored (%d new)\nelapsed: %s\n",
		s.FilesTotal, s.FilesIndexed, s.FilesSkipped, s.FilesFailed, s.FilesRemoved,
		s.TotalChunks, s.ChunksAdded, s.Duration.Round(time.Millisecond))
}

// RunIndex shows a progress view while run executes. Quitting the view
// cancels the run's context and waits for it to stop.
func RunIndex(ctx context.Context, project, root string, run RunFunc) (*index.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newIndexingModel(project, root))
	results := make(chan indexDoneMsg, 1)
	go func() {
		stats, err := run(ctx, func(pr index.Progress) {
			p.Send(indexProgressMsg(pr))
		})
		res := indexDoneMsg{stats: stats, err: err}
		results <- res
		p.Send(res)
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-results
		return nil, fmt.Errorf("run progress view: %w", err)
	}
	if m, ok := final.(indexingModel); ok && m.interrupted && !m.done {
		cancel()
		res := <-results
		return res.stats, ErrInterrupted
	}
	res := <-results
	return res.stats, res.err
}
