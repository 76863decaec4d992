// Package tui renders the invoice board in a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ledgerlane/invoicer/internal/board"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/money"
)

const requestTimeout = 10 * time.Second

// Source is what the board needs from the server.
type Source interface {
	ListInvoices(ctx context.Context, filter invoice.Filter) ([]invoice.Invoice, error)
	board.StatusWriter
}

// BoardModel shows every bucket side by side and moves the selected invoice
// one status left or right.
type BoardModel struct {
	source   Source
	engine   *board.Engine
	latest   board.Latest
	location *time.Location
	now      func() time.Time
	keys     KeyMap
	help     help.Model
	spinner  spinner.Model

	col, row int
	loading  bool
	moving   map[string]bool
	toast    string
	toastErr bool
}

// NewBoardModel builds the board. opts are passed to the engine.
func NewBoardModel(source Source, location *time.Location, opts ...board.Option) *BoardModel {
	if location == nil {
		location = time.Local
	}
	return &BoardModel{
		source:   source,
		engine:   board.NewEngine(source, opts...),
		location: location,
		now:      time.Now,
		keys:     DefaultKeyMap,
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(pendingStyle)),
		col:      1,
		moving:   make(map[string]bool),
	}
}

// Run starts the board full screen until the user quits or ctx ends.
func Run(ctx context.Context, source Source, location *time.Location, opts ...board.Option) error {
	_, err := tea.NewProgram(NewBoardModel(source, location, opts...), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model.
func (m *BoardModel) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.spinner.Tick)
}

// refresh lists invoices; only the newest listing is applied.
func (m *BoardModel) refresh() tea.Cmd {
	ticket := m.latest.Begin()
	m.loading = true
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		invoices, err := m.source.ListInvoices(ctx, invoice.Filter{})
		return loadedMsg{ticket: ticket, invoices: invoices, err: err}
	}
}

// Update implements tea.Model.
func (m *BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case loadedMsg:
		if !m.latest.Current(msg.ticket) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.notify("Refresh failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.engine.Load(msg.invoices)
		m.clamp()
		return m, nil

	case movedMsg:
		delete(m.moving, msg.id)
		m.clamp()
		switch {
		case msg.err == nil:
			m.notify(fmt.Sprintf("%s moved to %s", msg.number, msg.to), false)
		case errors.Is(msg.err, board.ErrMovePending):
			m.notify(msg.number+" is still being saved", true)
		default:
			m.notify(fmt.Sprintf("Move of %s undone: %v", msg.number, msg.err), true)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refresh()
		case key.Matches(msg, m.keys.Up):
			m.row--
		case key.Matches(msg, m.keys.Down):
			m.row++
		case key.Matches(msg, m.keys.Prev):
			m.col--
		case key.Matches(msg, m.keys.Next):
			m.col++
		case key.Matches(msg, m.keys.Left):
			return m, m.move(-1)
		case key.Matches(msg, m.keys.Right):
			return m, m.move(1)
		}
		m.clamp()
	}
	return m, nil
}

func (m *BoardModel) move(step int) tea.Cmd {
	inv, ok := m.selected()
	if !ok {
		return nil
	}
	if m.moving[inv.ID] || m.engine.Pending(inv.ID) {
		m.notify(inv.InvoiceNumber+" is still being saved", true)
		return nil
	}
	to, ok := neighbour(inv.Status, step)
	if !ok {
		return nil
	}
	m.moving[inv.ID] = true
	m.toast = ""
	id, number := inv.ID, inv.InvoiceNumber
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := m.engine.ApplyMove(ctx, id, board.Bucket(to))
		return movedMsg{id: id, number: number, to: to, err: err}
	}
}

// neighbour is the status step places away in board order.
func neighbour(current invoice.Status, step int) (invoice.Status, bool) {
	statuses := invoice.Statuses()
	for i, s := range statuses {
		if s != current {
			continue
		}
		j := i + step
		if j < 0 || j >= len(statuses) {
			return "", false
		}
		return statuses[j], true
	}
	return "", false
}

func (m *BoardModel) today() invoice.Date {
	return board.Today(m.now(), m.location)
}

func (m *BoardModel) selected() (invoice.Invoice, bool) {
	columns := m.engine.Columns(m.today())
	if m.col < 0 || m.col >= len(columns) {
		return invoice.Invoice{}, false
	}
	items := columns[m.col].Invoices
	if m.row < 0 || m.row >= len(items) {
		return invoice.Invoice{}, false
	}
	return items[m.row], true
}

func (m *BoardModel) clamp() {
	columns := m.engine.Columns(m.today())
	m.col = max(0, min(m.col, len(columns)-1))
	m.row = max(0, min(m.row, len(columns[m.col].Invoices)-1))
}

func (m *BoardModel) notify(text string, isErr bool) {
	m.toast = text
	m.toastErr = isErr
}

// View implements tea.Model.
func (m *BoardModel) View() string {
	today := m.today()
	columns := m.engine.Columns(today)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Invoice board"))
	b.WriteString(subtitleStyle.Render("  today " + today.String()))
	if m.loading {
		b.WriteString("  " + m.spinner.View() + subtitleStyle.Render(" loading"))
	}
	b.WriteString("\n\n")

	rendered := make([]string, 0, len(columns))
	for i, col := range columns {
		rendered = append(rendered, m.renderColumn(i, col))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	b.WriteString("\n")

	if m.toast != "" {
		style := toastOK
		if m.toastErr {
			style = toastError
		}
		b.WriteString(style.Render(m.toast))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *BoardModel) renderColumn(i int, col board.Column) string {
	lines := []string{titleStyle.Render(fmt.Sprintf("%s (%d)", col.Bucket, len(col.Invoices)))}
	for j, inv := range col.Invoices {
		due := invoice.TotalDue(inv)
		line := fmt.Sprintf("%s %s", inv.InvoiceNumber, money.Format(due))
		if col.Bucket == board.BucketDueToday {
			line += " " + string(inv.Status)
		}
		switch {
		case m.moving[inv.ID]:
			line = pendingStyle.Render(m.spinner.View() + " " + line)
		case i == m.col && j == m.row:
			line = selectedStyle.Render(line)
		case due.IsNegative():
			line = creditStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(col.Invoices) == 0 {
		lines = append(lines, subtitleStyle.Render("empty"))
	}

	style := columnStyle
	switch {
	case i == m.col:
		style = activeColumnStyle
	case col.Bucket == board.BucketDueToday:
		style = overlayColumnStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}
