package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"districtfinder/internal/browse"
	"districtfinder/internal/nces"
)

const helpMarkdown = `# District Finder

Type part of a district name. Matching districts appear below the input as
you type; pick one to list its schools ten at a time.

| Key | Action |
|-----|--------|
| tab / shift+tab | move between input, districts and schools |
| ↓ | jump from the input into the district list |
| enter | select the highlighted district |
| ← / → | previous / next page of schools |
| ctrl+y | copy the highlighted school's NCESSCH |
| F1 | toggle this help |
| esc / ctrl+c | quit |
`

type focusArea int

const (
	focusInput focusArea = iota
	focusDropdown
	focusTable
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	controlStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	disabledCtrl = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type keyMap struct {
	NextFocus key.Binding
	PrevFocus key.Binding
	Select    key.Binding
	PrevPage  key.Binding
	NextPage  key.Binding
	Copy      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextFocus, k.Select, k.PrevPage, k.NextPage, k.Copy, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextFocus, k.PrevFocus, k.Select},
		{k.PrevPage, k.NextPage, k.Copy},
		{k.Help, k.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		NextFocus: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch focus")),
		PrevFocus: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "focus back")),
		Select:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select district")),
		PrevPage:  key.NewBinding(key.WithKeys("left", "pgup", "["), key.WithHelp("←", "prev page")),
		NextPage:  key.NewBinding(key.WithKeys("right", "pgdown", "]"), key.WithHelp("→", "next page")),
		Copy:      key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy ID")),
		Help:      key.NewBinding(key.WithKeys("f1"), key.WithHelp("F1", "help")),
		Quit:      key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

type districtItem struct {
	district nces.District
}

func (i districtItem) Title() string {
	return i.district.Name
}

func (i districtItem) Description() string {
	if st := districtState(i.district); st != "" {
		return fmt.Sprintf("%s | LEAID %s", st, i.district.LEAID)
	}
	return "LEAID " + i.district.LEAID
}

func (i districtItem) FilterValue() string {
	return i.district.Name
}

// districtState finds the state abbreviation under the attribute names the
// backends use
func districtState(d nces.District) string {
	for _, k := range []string{"ST", "STATE", "LSTATE"} {
		if v, ok := d.Attributes[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

type districtsMsg struct {
	seq       uint64
	query     string
	districts []nces.District
	err       error
	elapsed   time.Duration
}

type schoolsMsg struct {
	seq        uint64
	districtID string
	schools    []nces.School
	err        error
	elapsed    time.Duration
}

// debounceMsg fires when the input has been idle for the debounce interval
type debounceMsg struct {
	tag   uint64
	query string
}

type clipboardMsg struct {
	value string
	err   error
}

func lookupDistricts(svc nces.Service, req browse.Request) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		districts, err := svc.SearchSchoolDistricts(context.Background(), req.Query)
		return districtsMsg{seq: req.Seq, query: req.Query, districts: districts, err: err, elapsed: time.Since(start)}
	}
}

func lookupSchools(svc nces.Service, req browse.Request) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		schools, err := svc.SearchSchools(context.Background(), req.Query, req.DistrictID)
		return schoolsMsg{seq: req.Seq, districtID: req.DistrictID, schools: schools, err: err, elapsed: time.Since(start)}
	}
}

func copyToClipboard(value string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{value: value, err: clipboard.WriteAll(value)}
	}
}

type model struct {
	service   nces.Service
	state     browse.State
	sessionID string

	input    textinput.Model
	spinner  spinner.Model
	dropdown list.Model
	table    table.Model
	keys     keyMap
	help     help.Model
	focus    focusArea

	debounce    time.Duration
	debounceTag uint64

	showHelp bool
	helpView string
	status   string
	width    int
	height   int
}

func initialModel(service nces.Service, debounce time.Duration) model {
	ti := textinput.New()
	ti.Placeholder = "Search school districts by name..."
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 60

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))

	delegate := list.NewDefaultDelegate()
	delegate.SetHeight(2)

	l := list.New([]list.Item{}, delegate, 60, 8)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)

	t := table.New(
		table.WithColumns(schoolColumns(80)),
		table.WithHeight(browse.PageSize+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("62"))
	t.SetStyles(styles)

	return model{
		service:   service,
		sessionID: uuid.NewString(),
		input:     ti,
		spinner:   sp,
		dropdown:  l,
		table:     t,
		keys:      newKeyMap(),
		help:      help.New(),
		debounce:  debounce,
	}
}

// schoolColumns sizes the Name/City/State/NCESSCH columns to width
func schoolColumns(width int) []table.Column {
	const stateW, idW = 6, 14
	rest := width - stateW - idW - 8
	if rest < 30 {
		rest = 30
	}
	nameW := rest * 3 / 5
	return []table.Column{
		{Title: "Name", Width: nameW},
		{Title: "City", Width: rest - nameW},
		{Title: "State", Width: stateW},
		{Title: "NCESSCH", Width: idW},
	}
}

func (m model) Init() tea.Cmd {
	if logger != nil {
		logger.Info("TUI session started", "session_id", m.sessionID, "debounce", m.debounce.String())
	}
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(20, msg.Width-8)
		m.dropdown.SetSize(max(20, msg.Width-4), max(4, min(12, msg.Height/3)))
		m.table.SetColumns(schoolColumns(msg.Width))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if !m.state.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case debounceMsg:
		if msg.tag != m.debounceTag {
			return m, nil
		}
		return m.commitQuery(msg.query)

	case districtsMsg:
		if !m.state.ResolveDistricts(msg.seq, msg.districts, msg.err) {
			if logger != nil {
				logger.Debug("Discarded stale district lookup", "session_id", m.sessionID, "seq", msg.seq, "query", msg.query)
			}
			return m, nil
		}
		if msg.err != nil {
			if logger != nil {
				logger.Error("District lookup failed", "error", msg.err, "session_id", m.sessionID, "query", msg.query)
			}
		} else if logger != nil {
			logger.Info("District lookup completed", "session_id", m.sessionID, "query", msg.query, "results_count", len(msg.districts), "elapsed", msg.elapsed.String())
		}
		cmd := m.syncDropdown()
		if m.focus == focusDropdown && len(m.state.Matches()) == 0 {
			m.setFocus(focusInput)
		}
		return m, cmd

	case schoolsMsg:
		if !m.state.ResolveSchools(msg.seq, msg.schools, msg.err) {
			if logger != nil {
				logger.Debug("Discarded stale school lookup", "session_id", m.sessionID, "seq", msg.seq, "district_id", msg.districtID)
			}
			return m, nil
		}
		if msg.err != nil {
			if logger != nil {
				logger.Error("School lookup failed", "error", msg.err, "session_id", m.sessionID, "district_id", msg.districtID)
			}
		} else if logger != nil {
			logger.Info("School lookup completed", "session_id", m.sessionID, "district_id", msg.districtID, "results_count", len(msg.schools), "elapsed", msg.elapsed.String())
		}
		m.syncTable()
		if m.focus == focusTable && m.state.SchoolsArea() != browse.SchoolsTable {
			m.setFocus(focusInput)
		}
		return m, nil

	case clipboardMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Copy failed: %v", msg.err)
			if logger != nil {
				logger.Warn("Clipboard write failed", "error", msg.err, "session_id", m.sessionID)
			}
		} else {
			m.status = fmt.Sprintf("Copied %s to clipboard", msg.value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch {
		case key.Matches(msg, m.keys.Help), msg.Type == tea.KeyEsc:
			m.showHelp = false
			return m, nil
		case msg.Type == tea.KeyCtrlC:
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if logger != nil {
			logger.Info("TUI session ended", "session_id", m.sessionID)
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		rendered, err := renderMarkdown(helpMarkdown, max(m.width, 60))
		if err != nil {
			rendered = helpMarkdown
		}
		m.helpView = rendered
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.NextFocus):
		m.cycleFocus(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevFocus):
		m.cycleFocus(-1)
		return m, nil
	}

	switch m.focus {
	case focusDropdown:
		return m.handleDropdownKeys(msg)
	case focusTable:
		return m.handleTableKeys(msg)
	}
	return m.handleInputKeys(msg)
}

func (m model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyDown && m.state.Dropdown() == browse.DropdownMatches {
		m.setFocus(focusDropdown)
		return m, nil
	}
	if msg.Type == tea.KeyEnter {
		// commit immediately, skipping any pending debounce
		m.debounceTag++
		return m.commitQuery(m.input.Value())
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	value := m.input.Value()
	if value == before {
		return m, cmd
	}
	m.status = ""

	if m.debounce <= 0 {
		next, lookup := m.commitQuery(value)
		return next, tea.Batch(cmd, lookup)
	}

	m.debounceTag++
	tag := m.debounceTag
	return m, tea.Batch(cmd, tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return debounceMsg{tag: tag, query: value}
	}))
}

func (m model) handleDropdownKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		return m.selectDistrict(m.dropdown.Index())
	case msg.Type == tea.KeyUp && m.dropdown.Index() == 0:
		m.setFocus(focusInput)
		return m, nil
	}

	var cmd tea.Cmd
	m.dropdown, cmd = m.dropdown.Update(msg)
	return m, cmd
}

func (m model) handleTableKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.PrevPage):
		if m.state.PrevPage() {
			m.syncTable()
		}
		return m, nil
	case key.Matches(msg, m.keys.NextPage):
		if m.state.NextPage() {
			m.syncTable()
		}
		return m, nil
	case key.Matches(msg, m.keys.Copy):
		if row := m.table.SelectedRow(); len(row) == 4 {
			return m, copyToClipboard(row[3])
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// commitQuery hands the query to the state machine and starts the lookup it
// asks for, if any
func (m model) commitQuery(q string) (model, tea.Cmd) {
	req, ok := m.state.SetQuery(q)
	cmd := m.syncDropdown()
	if !ok {
		return m, cmd
	}
	if logger != nil {
		logger.Debug("District lookup issued", "session_id", m.sessionID, "seq", req.Seq, "query", req.Query)
	}
	return m, tea.Batch(cmd, lookupDistricts(m.service, req), m.spinner.Tick)
}

func (m model) selectDistrict(i int) (model, tea.Cmd) {
	req, ok := m.state.SelectIndex(i)
	if !ok {
		return m, nil
	}
	if logger != nil {
		d := m.state.Selected()
		logger.Info("District selected", "session_id", m.sessionID, "district_id", d.LEAID, "district_name", d.Name)
	}
	cmd := m.syncDropdown()
	m.syncTable()
	m.setFocus(focusTable)
	return m, tea.Batch(cmd, lookupSchools(m.service, req), m.spinner.Tick)
}

func (m *model) syncDropdown() tea.Cmd {
	matches := m.state.Matches()
	items := make([]list.Item, len(matches))
	for i, d := range matches {
		items[i] = districtItem{district: d}
	}
	cmd := m.dropdown.SetItems(items)
	m.dropdown.Select(0)
	return cmd
}

func (m *model) syncTable() {
	visible := m.state.VisibleSchools()
	rows := make([]table.Row, len(visible))
	for i, s := range visible {
		rows[i] = table.Row{s.Name, s.City, s.State, s.NCESSCH}
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

func (m *model) setFocus(f focusArea) {
	m.focus = f
	m.input.Blur()
	m.table.Blur()
	switch f {
	case focusInput:
		m.input.Focus()
	case focusTable:
		m.table.Focus()
	}
}

// cycleFocus moves focus by dir over the areas that are currently shown
func (m *model) cycleFocus(dir int) {
	areas := []focusArea{focusInput}
	if m.state.Dropdown() == browse.DropdownMatches {
		areas = append(areas, focusDropdown)
	}
	if m.state.SchoolsArea() == browse.SchoolsTable {
		areas = append(areas, focusTable)
	}

	idx := 0
	for i, a := range areas {
		if a == m.focus {
			idx = i
		}
	}
	idx = (idx + dir + len(areas)) % len(areas)
	m.setFocus(areas[idx])
}

func (m model) View() string {
	if m.showHelp {
		return m.helpView + "\n" + mutedStyle.Render("F1/Esc: close help")
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("🏫 District Finder"))
	b.WriteString("\n")
	b.WriteString(inputStyle.Render(m.input.View()))
	b.WriteString("\n")

	b.WriteString(m.dropdownView())
	b.WriteString(m.schoolsView())

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m model) dropdownView() string {
	switch m.state.Dropdown() {
	case browse.DropdownLoading:
		return fmt.Sprintf("%s Searching districts...\n", m.spinner.View())
	case browse.DropdownMatches:
		return m.dropdown.View() + "\n"
	case browse.DropdownNoMatches:
		return mutedStyle.Render("No District Found") + "\n"
	case browse.DropdownError:
		return errorStyle.Render(fmt.Sprintf("District lookup failed: %v", m.state.DistrictError())) + "\n"
	default:
		return ""
	}
}

func (m model) schoolsView() string {
	area := m.state.SchoolsArea()
	if area == browse.SchoolsEmpty {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Schools in District: " + m.state.Selected().Name))
	b.WriteString("\n")

	switch area {
	case browse.SchoolsLoading:
		b.WriteString(fmt.Sprintf("%s Loading schools...\n", m.spinner.View()))
	case browse.SchoolsError:
		b.WriteString(errorStyle.Render(fmt.Sprintf("School lookup failed: %v", m.state.SchoolError())))
		b.WriteString("\n")
	case browse.SchoolsNoResults:
		b.WriteString(mutedStyle.Render("No Schools Found for District."))
		b.WriteString("\n")
	case browse.SchoolsTable:
		b.WriteString(m.table.View())
		b.WriteString("\n")
		if m.state.ShowPagination() {
			b.WriteString(m.paginationView())
			b.WriteString("\n")
		}
		b.WriteString(mutedStyle.Render(PageIndicator(m.state.Page(), len(m.state.Schools()), 20)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) paginationView() string {
	prev, next := disabledCtrl.Render("‹ Prev"), disabledCtrl.Render("Next ›")
	if m.state.CanPrev() {
		prev = controlStyle.Render("‹ Prev")
	}
	if m.state.CanNext() {
		next = controlStyle.Render("Next ›")
	}
	page := fmt.Sprintf(" Page %d of %d ", m.state.Page(), m.state.TotalPages())
	return lipgloss.JoinHorizontal(lipgloss.Center, prev, page, next)
}
