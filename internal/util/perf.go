package util

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StageStat aggregates every recorded run of one named stage
type StageStat struct {
	Name  string
	Count int
	Total time.Duration
	Max   time.Duration
}

// Avg returns the mean duration of the stage
func (s StageStat) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Stopwatch records how long each crawl stage took, e.g. "fetch:anilist" or
// "probe". A nil *Stopwatch is valid and records nothing.
type Stopwatch struct {
	mu       sync.Mutex
	started  time.Time
	stages   map[string]*StageStat
	counters map[string]int
}

// NewStopwatch creates a stopwatch that starts counting now
func NewStopwatch() *Stopwatch {
	return &Stopwatch{
		started:  time.Now(),
		stages:   make(map[string]*StageStat),
		counters: make(map[string]int),
	}
}

// Track starts timing a stage; call the returned func when it ends
func (sw *Stopwatch) Track(name string) func() {
	if sw == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		sw.Record(name, time.Since(start))
	}
}

// Record adds one run of a stage
func (sw *Stopwatch) Record(name string, d time.Duration) {
	if sw == nil {
		return
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()

	st, ok := sw.stages[name]
	if !ok {
		st = &StageStat{Name: name}
		sw.stages[name] = st
	}
	st.Count++
	st.Total += d
	if d > st.Max {
		st.Max = d
	}
	Debugf("[PERF] %s took %v", name, d.Round(time.Millisecond))
}

// Count bumps a named counter
func (sw *Stopwatch) Count(name string) {
	if sw == nil {
		return
	}
	sw.mu.Lock()
	sw.counters[name]++
	sw.mu.Unlock()
}

// Stage returns the stats of one stage
func (sw *Stopwatch) Stage(name string) (StageStat, bool) {
	if sw == nil {
		return StageStat{}, false
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	st, ok := sw.stages[name]
	if !ok {
		return StageStat{}, false
	}
	return *st, true
}

// Counter returns the value of a named counter
func (sw *Stopwatch) Counter(name string) int {
	if sw == nil {
		return 0
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.counters[name]
}

var (
	perfTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	perfHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00CED1")).
			Bold(true)

	perfNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	perfSlowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6347")).
			Bold(true)

	perfFastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#32CD32"))

	perfSeparatorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#4A4A4A"))
)

// Report renders the recorded stages, slowest first
func (sw *Stopwatch) Report() string {
	if sw == nil {
		return ""
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()

	stats := make([]StageStat, 0, len(sw.stages))
	for _, st := range sw.stages {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Total == stats[j].Total {
			return stats[i].Name < stats[j].Name
		}
		return stats[i].Total > stats[j].Total
	})

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(perfTitleStyle.Render("⚡ CRAWL TIMINGS"))
	b.WriteString(fmt.Sprintf("  (elapsed %s)\n", time.Since(sw.started).Round(time.Millisecond)))
	b.WriteString(perfSeparatorStyle.Render(strings.Repeat("─", 64)))
	b.WriteString("\n")

	for _, st := range stats {
		total := st.Total.Round(time.Millisecond).String()
		switch {
		case st.Total > 5*time.Second:
			total = perfSlowStyle.Render(total)
		case st.Total < 500*time.Millisecond:
			total = perfFastStyle.Render(total)
		}
		b.WriteString(fmt.Sprintf("   %-28s %10s  x%-3d max %s\n",
			perfNameStyle.Render(st.Name), total, st.Count, st.Max.Round(time.Millisecond)))
	}

	if len(sw.counters) > 0 {
		names := make([]string, 0, len(sw.counters))
		for name := range sw.counters {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString(perfHeaderStyle.Render("🔢 Counters"))
		b.WriteString("\n")
		for _, name := range names {
			b.WriteString(fmt.Sprintf("   %-28s %d\n", perfNameStyle.Render(name), sw.counters[name]))
		}
	}
	return b.String()
}
