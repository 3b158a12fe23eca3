// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchui implements the full-screen live view behind
// "mountbay watch": a table of active mounts above a feed of recent
// pipeline events. The model owns no transport; the caller supplies a
// Fetch function (typically backed by the daemon control socket) and
// the model re-runs it on a fixed interval, on manual refresh, and
// once at startup.
package watchui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultInterval is the poll cadence used when New is given a
// non-positive interval.
const DefaultInterval = 2 * time.Second

// fetchTimeout bounds a single poll so a wedged daemon cannot hang
// the view. The failed poll surfaces in the title bar and the next
// tick tries again.
const fetchTimeout = 5 * time.Second

// Mount is one device currently merged into the union view.
type Mount struct {
	Device      string
	ContentPath string
}

// Event is one completed pipeline run.
type Event struct {
	At       time.Time
	Op       string
	Device   string
	Status   int
	Message  string
	Duration time.Duration
}

// Snapshot is the daemon state captured by one poll. Taken is set by
// the Fetch implementation; a zero Taken hides the "updated" stamp.
type Snapshot struct {
	Mounts []Mount
	Events []Event // Newest first.
	Taken  time.Time
}

// Fetch retrieves a Snapshot from the daemon. It runs on a bubbletea
// command goroutine and is never called concurrently with itself.
type Fetch func(ctx context.Context) (Snapshot, error)

// snapshotMsg delivers a completed poll through the message loop.
type snapshotMsg struct {
	snapshot Snapshot
	err      error
}

// pollTickMsg fires when the poll interval elapses.
type pollTickMsg struct{}

// Model is the bubbletea model for the watch view.
type Model struct {
	fetch    Fetch
	interval time.Duration
	theme    Theme
	keys     KeyMap

	// Terminal dimensions (set by WindowSizeMsg).
	width  int
	height int
	ready  bool

	// Last successful snapshot. Kept across poll failures so the
	// operator still sees the most recent known state.
	snapshot Snapshot
	haveData bool

	// Last poll error, cleared by the next successful poll.
	fetchError string

	// True while a fetch command is outstanding. Keeps manual refresh
	// and the tick chain from stacking concurrent polls.
	fetchInFlight bool
}

// New creates a watch model that polls fetch every interval.
// Non-positive intervals fall back to DefaultInterval. The returned
// model already marks the first poll as outstanding; Init issues it.
func New(fetch Fetch, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Model{
		fetch:         fetch,
		interval:      interval,
		theme:         DefaultTheme,
		keys:          DefaultKeyMap,
		fetchInFlight: true,
	}
}

// Init implements tea.Model. Issues the first poll; the snapshot
// handler schedules the steady-state ticks.
func (model Model) Init() tea.Cmd {
	return fetchSnapshot(model.fetch)
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Quit):
			return model, tea.Quit

		case key.Matches(message, model.keys.Refresh):
			return model.startPoll()
		}

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true

	case snapshotMsg:
		model.fetchInFlight = false
		if message.err != nil {
			model.fetchError = message.err.Error()
		} else {
			model.fetchError = ""
			model.snapshot = message.snapshot
			model.haveData = true
		}
		return model, schedulePoll(model.interval)

	case pollTickMsg:
		return model.startPoll()
	}

	return model, nil
}

// startPoll begins a fetch unless one is already outstanding. The
// guard collapses overlapping tick chains: a manual refresh between
// ticks schedules an extra tick via its snapshotMsg, and that surplus
// tick lands here while the next fetch is in flight and stops.
func (model Model) startPoll() (tea.Model, tea.Cmd) {
	if model.fetchInFlight {
		return model, nil
	}
	model.fetchInFlight = true
	return model, fetchSnapshot(model.fetch)
}

// fetchSnapshot returns a command that runs one poll.
func fetchSnapshot(fetch Fetch) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		snapshot, err := fetch(ctx)
		return snapshotMsg{snapshot: snapshot, err: err}
	}
}

// schedulePoll returns a command that fires pollTickMsg after the
// poll interval.
func schedulePoll(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}

	// Fixed chrome: title, separator, mounts header, blank line,
	// events header, bottom separator, help bar.
	available := model.height - 7
	if available < 2 {
		available = 2
	}
	mountBudget := available / 2
	if count := len(model.snapshot.Mounts); count < mountBudget {
		mountBudget = count
	}
	if mountBudget < 1 {
		mountBudget = 1
	}
	eventBudget := available - mountBudget

	deviceWidth := model.deviceColumnWidth()

	lines := []string{model.renderTitle(), model.renderSeparator()}
	lines = append(lines, model.renderMountSection(deviceWidth, mountBudget)...)
	lines = append(lines, "")
	lines = append(lines, model.renderEventSection(deviceWidth, eventBudget)...)

	// Anchor the help bar to the bottom edge. On terminals too small
	// for the content the renderer clips the overflow instead.
	for len(lines) < model.height-2 {
		lines = append(lines, "")
	}
	lines = append(lines, model.renderSeparator(), model.renderHelp())

	return strings.Join(lines, "\n")
}

// renderTitle builds the top status line: program name, mount count,
// last update stamp, and the current poll error if any.
func (model Model) renderTitle() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground)
	faintStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	parts := []string{
		titleStyle.Render("mountbay"),
		faintStyle.Render(fmt.Sprintf("%d mounted", len(model.snapshot.Mounts))),
	}
	if model.haveData && !model.snapshot.Taken.IsZero() {
		parts = append(parts, faintStyle.Render("updated "+model.snapshot.Taken.Format("15:04:05")))
	}
	if model.fetchError != "" {
		errorStyle := lipgloss.NewStyle().Foreground(model.theme.ErrorText)
		parts = append(parts, errorStyle.Render("poll failed: "+model.fetchError))
	}

	return " " + strings.Join(parts, faintStyle.Render("  ·  "))
}

// renderMountSection renders the column header plus up to budget mount
// rows. When more devices are mounted than fit, the last row collapses
// into an overflow count.
func (model Model) renderMountSection(deviceWidth, budget int) []string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.FaintText)
	normalStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	faintStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	lines := []string{" " + headerStyle.Render(fmt.Sprintf("%-*s  %s", deviceWidth, "DEVICE", "CONTENT PATH"))}

	mounts := model.snapshot.Mounts
	if len(mounts) == 0 {
		return append(lines, " "+faintStyle.Render("(no devices mounted)"))
	}

	shown := len(mounts)
	overflow := 0
	if shown > budget {
		shown = budget - 1
		if shown < 0 {
			shown = 0
		}
		overflow = len(mounts) - shown
	}

	contentWidth := model.width - 1 - deviceWidth - 2
	for _, mount := range mounts[:shown] {
		device := fmt.Sprintf("%-*s", deviceWidth, truncate(mount.Device, deviceWidth))
		lines = append(lines, " "+normalStyle.Render(device)+"  "+faintStyle.Render(truncate(mount.ContentPath, contentWidth)))
	}
	if overflow > 0 {
		lines = append(lines, " "+faintStyle.Render(fmt.Sprintf("… and %d more", overflow)))
	}

	return lines
}

// renderEventSection renders the events header plus up to budget of
// the newest pipeline events.
func (model Model) renderEventSection(deviceWidth, budget int) []string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.FaintText)
	faintStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	lines := []string{" " + headerStyle.Render("RECENT EVENTS")}

	events := model.snapshot.Events
	if len(events) == 0 {
		return append(lines, " "+faintStyle.Render("(no events yet)"))
	}
	if len(events) > budget {
		events = events[:budget]
	}

	for _, event := range events {
		lines = append(lines, model.renderEventRow(event, deviceWidth))
	}

	return lines
}

// renderEventRow formats one event as a fixed-column row:
//
//	15:04:09  mount   sdb  201  OK (1.237s)
//	15:03:58  umount  sdc  500  Could not remove mountpoints.
func (model Model) renderEventRow(event Event, deviceWidth int) string {
	faintStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	normalStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	statusStyle := lipgloss.NewStyle().Foreground(model.theme.StatusColor(event.Status))

	message := event.Message
	if event.Duration > 0 {
		message = fmt.Sprintf("%s (%s)", message, event.Duration.Round(time.Millisecond))
	}
	// Indent, time, op, device, and status columns with two-space gaps.
	messageWidth := model.width - 26 - deviceWidth

	return " " + faintStyle.Render(event.At.Format("15:04:05")) +
		"  " + normalStyle.Render(fmt.Sprintf("%-6s", event.Op)) +
		"  " + normalStyle.Render(fmt.Sprintf("%-*s", deviceWidth, truncate(event.Device, deviceWidth))) +
		"  " + statusStyle.Render(fmt.Sprintf("%3d", event.Status)) +
		"  " + faintStyle.Render(truncate(message, messageWidth))
}

// renderSeparator draws a horizontal rule across the full width.
func (model Model) renderSeparator() string {
	return lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", model.width))
}

// renderHelp builds the bottom help bar from the key map.
func (model Model) renderHelp() string {
	style := lipgloss.NewStyle().Foreground(model.theme.HelpText)
	entries := []string{
		model.keys.Refresh.Help().Key + " " + model.keys.Refresh.Help().Desc,
		model.keys.Quit.Help().Key + " " + model.keys.Quit.Help().Desc,
	}
	return " " + style.Render(strings.Join(entries, "   "))
}

// deviceColumnWidth sizes the device column to the widest name in the
// snapshot, bounded so one pathological name cannot crowd out the rest
// of the row.
func (model Model) deviceColumnWidth() int {
	width := len("DEVICE")
	for _, mount := range model.snapshot.Mounts {
		if n := lipgloss.Width(mount.Device); n > width {
			width = n
		}
	}
	for _, event := range model.snapshot.Events {
		if n := lipgloss.Width(event.Device); n > width {
			width = n
		}
	}
	if width > 24 {
		width = 24
	}
	return width
}

// truncate shortens text to at most width columns, marking the cut
// with an ellipsis.
func truncate(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(text) <= width {
		return text
	}
	runes := []rune(text)
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
