package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
)

var (
	progressTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF69B4")).Bold(true)
	progressHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// tickMsg represents a periodic update message
type tickMsg time.Time

// statusMsg represents a status update message
type statusMsg string

// itemMsg announces the download that is starting
type itemMsg struct {
	index int
	total int
	label string
}

// progressMsg represents a progress update message
type progressMsg struct {
	received   int64
	totalBytes int64
}

// progressModel renders a bar for the cover being downloaded
type progressModel struct {
	progress   progress.Model
	item       string
	totalBytes int64
	received   int64
	status     string
	done       bool
	cancelled  bool
	mu         sync.Mutex
}

func newProgressModel() *progressModel {
	return &progressModel{
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// tickCmd returns a command that sends a tick message after a delay
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *progressModel) Init() tea.Cmd {
	return tickCmd()
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.mu.Lock()
			m.done = true
			m.cancelled = true
			m.mu.Unlock()
			return m, tea.Quit
		}
	case tickMsg:
		m.mu.Lock()
		done := m.done
		m.mu.Unlock()
		if done {
			return m, tea.Quit
		}
		return m, tickCmd()
	case itemMsg:
		m.mu.Lock()
		m.item = fmt.Sprintf("[%d/%d] %s", msg.index+1, msg.total, msg.label)
		m.received, m.totalBytes = 0, 0
		m.mu.Unlock()
		return m, m.progress.SetPercent(0)
	case statusMsg:
		m.mu.Lock()
		m.status = string(msg)
		m.mu.Unlock()
		return m, nil
	case progressMsg:
		m.mu.Lock()
		m.received = msg.received
		m.totalBytes = msg.totalBytes
		var cmd tea.Cmd
		if m.totalBytes > 0 {
			cmd = m.progress.SetPercent(float64(m.received) / float64(m.totalBytes))
		}
		m.mu.Unlock()
		return m, cmd
	case progress.FrameMsg:
		newModel, cmd := m.progress.Update(msg)
		m.progress = newModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := m.status
	if status == "" {
		if m.totalBytes > 0 {
			status = fmt.Sprintf("%.1f%% of %.2f MB", float64(m.received)/float64(m.totalBytes)*100, float64(m.totalBytes)/(1024*1024))
		} else {
			status = fmt.Sprintf("%.2f MB", float64(m.received)/(1024*1024))
		}
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s\n",
		progressTitleStyle.Render("⬇ "+m.item),
		m.progress.View(),
		status,
		progressHintStyle.Render("Press Ctrl+C to cancel"))
}

// DownloadAllWithProgress downloads candidates one by one behind a progress
// bar. Ctrl+C cancels the remaining downloads.
func (d *Downloader) DownloadAllWithProgress(ctx context.Context, candidates []models.Candidate, label string) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newProgressModel()
	p := tea.NewProgram(m)

	results := make([]Result, 0, len(candidates))
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i, c := range candidates {
			if ctx.Err() != nil {
				results = append(results, Result{Candidate: c})
				continue
			}
			p.Send(itemMsg{index: i, total: len(candidates), label: c.Source.DisplayName()})
			p.Send(statusMsg(""))
			path, ok := d.DownloadWithProgress(ctx, c.ImageURL, label, c.Source, func(received, total int64) {
				p.Send(progressMsg{received: received, totalBytes: total})
			})
			results = append(results, Result{Candidate: c, Path: path, OK: ok})
		}
		p.Send(statusMsg("All downloads completed!"))
		time.Sleep(300 * time.Millisecond)
		m.mu.Lock()
		m.done = true
		m.mu.Unlock()
		p.Quit()
	}()

	_, runErr := p.Run()
	m.mu.Lock()
	cancelled := m.cancelled
	m.mu.Unlock()
	if cancelled || runErr != nil {
		cancel()
	}
	<-finished

	if runErr != nil {
		return results, fmt.Errorf("progress display error: %w", runErr)
	}
	return results, nil
}
