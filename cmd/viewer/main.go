// flowstate-viewer is a terminal demo of the chat visualization engine.
//
// It runs the engine on synthetic traffic and renders the live bubble
// field, ranked topics, open questions and the vibe drip in a Bubbletea
// TUI. Useful for eyeballing the physics and pacing without a browser.
//
// Usage:
//
//	flowstate-viewer [flags]
//
// Flags:
//
//	-rate duration  Synthetic message interval (default 400ms)
//	-seed int       RNG seed for traffic and physics (0 = time-based)
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"flowstate/internal/domain"
	"flowstate/internal/engine"
	"flowstate/internal/feed"
	"flowstate/internal/metrics"
	"flowstate/pkg/logger"
)

const (
	frameInterval = 100 * time.Millisecond
	sidebarWidth  = 42
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	bullishStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	bearishStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	neutralStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	vibeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#EC4899"))
	fieldStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#6B7280"))

	bandStyles = map[domain.VelocityBand]lipgloss.Style{
		domain.BandQuiet:  dimStyle,
		domain.BandActive: neutralStyle,
		domain.BandBusy:   questionStyle,
		domain.BandHype:   bearishStyle,
	}
)

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	eng    *engine.Engine
	snap   domain.Snapshot
	width  int
	height int
	paused bool
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if !m.paused {
			m.snap = m.eng.Snapshot()
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "starting..."
	}

	fieldW := m.width - sidebarWidth - 1
	fieldH := m.height - 2
	if fieldW < 20 || fieldH < 10 {
		return "terminal too small"
	}

	field := m.renderField(fieldW-2, fieldH-2)
	sidebar := m.renderSidebar(sidebarWidth, fieldH)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		fieldStyle.Width(fieldW-2).Height(fieldH-2).Render(field),
		" ",
		sidebar,
	)
	return body + "\n" + m.statusBar()
}

// renderField projects bubble positions onto a rune grid. Terminal cells
// are roughly twice as tall as wide, so the Y axis is compressed by 0.5.
func (m model) renderField(w, h int) string {
	buf := make([][]rune, h)
	for y := range buf {
		buf[y] = make([]rune, w)
		for x := range buf[y] {
			buf[y][x] = ' '
		}
	}

	cfg := engine.DefaultConfig()
	scaleX := float64(w) / cfg.Sim.Width
	scaleY := float64(h) / cfg.Sim.Height

	for _, b := range m.snap.Bubbles {
		cx := int(b.X * scaleX)
		cy := int(b.Y * scaleY)
		rx := math.Max(1, b.Radius*scaleX)
		ry := math.Max(1, b.Radius*scaleY*0.5)

		for y := cy - int(ry); y <= cy+int(ry); y++ {
			for x := cx - int(rx); x <= cx+int(rx); x++ {
				if x < 0 || x >= w || y < 0 || y >= h {
					continue
				}
				dx := float64(x-cx) / rx
				dy := float64(y-cy) / ry
				if dx*dx+dy*dy <= 1 {
					buf[y][x] = '·'
				}
			}
		}

		label := b.Symbol
		lx := cx - len(label)/2
		if cy >= 0 && cy < h {
			for i, ch := range label {
				if lx+i >= 0 && lx+i < w {
					buf[cy][lx+i] = ch
				}
			}
		}
	}

	lines := make([]string, h)
	for i, row := range buf {
		lines[i] = string(row)
	}
	return strings.Join(lines, "\n")
}

func (m model) renderSidebar(w, h int) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Topics") + "\n")
	for i, t := range m.snap.Topics {
		if i >= 6 {
			break
		}
		style := neutralStyle
		switch t.Dominant {
		case domain.SentimentBullish:
			style = bullishStyle
		case domain.SentimentBearish:
			style = bearishStyle
		}
		marker := " "
		if t.Contested {
			marker = "~"
		}
		b.WriteString(fmt.Sprintf("%s %-6s %4d %s\n",
			marker, t.Symbol, t.Count, style.Render(string(t.Dominant))))
	}

	b.WriteString("\n" + titleStyle.Render("Questions") + "\n")
	for i, q := range m.snap.Questions {
		if i >= 5 {
			break
		}
		b.WriteString(questionStyle.Render("? ") + truncate(q.Text, w-6))
		if q.Count > 1 {
			b.WriteString(dimStyle.Render(fmt.Sprintf(" ×%d", q.Count)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + titleStyle.Render("Pulse") + "\n")
	for i, p := range m.snap.Pulses {
		if i >= 3 {
			break
		}
		b.WriteString(p.Mood + " " + truncate(p.Summary, w-4) + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("Vibes") + "\n")
	for i, v := range m.snap.Vibes {
		if i >= 4 {
			break
		}
		b.WriteString(vibeStyle.Render("♪ ") + truncate(v.Text, w-4) + "\n")
	}

	return lipgloss.NewStyle().Width(w).MaxHeight(h).Render(b.String())
}

func (m model) statusBar() string {
	band := bandStyles[m.snap.Band].Render(string(m.snap.Band))
	state := ""
	if m.paused {
		state = "  [paused]"
	}
	left := fmt.Sprintf(" %.1f msg/s  %s  %d bubbles%s",
		m.snap.Rate, band, len(m.snap.Bubbles), state)
	hints := "space:pause  q:quit "
	pad := m.width - lipgloss.Width(left) - len(hints)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + dimStyle.Render(hints)
}

func truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func main() {
	rate := flag.Duration("rate", 400*time.Millisecond, "synthetic message interval")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	flag.Parse()

	// The TUI owns the terminal, so keep the logger silent.
	if err := logger.Init("error", "development"); err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	log := logger.Get()

	metrics.Init()

	engCfg := engine.DefaultConfig()
	engCfg.Pacer.Seed = *seed
	engCfg.Sim.Seed = *seed
	eng := engine.New(engCfg, log)

	synCfg := feed.DefaultSyntheticConfig()
	synCfg.MessageInterval = *rate
	synCfg.Seed = *seed
	syn := feed.NewSynthetic(synCfg, eng.HandleEvent, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = eng.Run(ctx) }()
	go func() { _ = syn.Run(ctx) }()
	defer eng.Close()

	m := model{eng: eng}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "viewer:", err)
		os.Exit(1)
	}
}
