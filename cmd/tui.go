package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/blacktop/fluxstudio/internal/api"
	"github.com/blacktop/fluxstudio/internal/download"
	"github.com/blacktop/fluxstudio/internal/dropdown"
	"github.com/blacktop/fluxstudio/internal/studio"
)

type focus int

const (
	focusPrompt focus = iota
	focusModel
	focusFormat
	focusStyle
	focusAspect
	focusCount
	focusPrivate
	focusSteps
	focusGuidance
	focusSeed
	focusNegative
	focusGrid
	numFocus
)

var dropdownFocus = map[focus]string{
	focusModel:  studio.GroupModel,
	focusFormat: studio.GroupFormat,
	focusStyle:  studio.GroupStyle,
}

type keyMap struct {
	Quit       key.Binding
	Next       key.Binding
	Prev       key.Binding
	Generate   key.Binding
	Regenerate key.Binding
	Escape     key.Binding
	Up         key.Binding
	Down       key.Binding
	Left       key.Binding
	Right      key.Binding
	Enter      key.Binding
	Download   key.Binding
	Filter     key.Binding
	NextFilter key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	Next:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
	Prev:       key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev")),
	Generate:   key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "generate")),
	Regenerate: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "regenerate")),
	Escape:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	Up:         key.NewBinding(key.WithKeys("up")),
	Down:       key.NewBinding(key.WithKeys("down")),
	Left:       key.NewBinding(key.WithKeys("left")),
	Right:      key.NewBinding(key.WithKeys("right")),
	Enter:      key.NewBinding(key.WithKeys("enter", " ")),
	Download:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download")),
	Filter:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	NextFilter: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "filter type")),
}

type model struct {
	studio *studio.Studio
	client *api.Client
	saver  *download.Saver

	focus      focus
	prompt     textinput.Model
	negative   textinput.Model
	seed       textinput.Model
	search     textinput.Model
	optCursor  int
	gridCursor int
	filter     int
	spinner    spinner.Model
	images     map[string][]byte
	width      int
	height     int
}

func newModel(s *studio.Studio, client *api.Client, saver *download.Saver) model {
	prompt := textinput.New()
	prompt.Placeholder = "Type a prompt..."
	prompt.SetValue(s.Prompt)
	prompt.Focus()

	negative := textinput.New()
	negative.Placeholder = "Things to leave out"
	negative.SetValue(s.NegativePrompt)

	seed := textinput.New()
	seed.Placeholder = "random"
	seed.CharLimit = 12
	if s.Seed >= 0 {
		seed.SetValue(fmt.Sprint(s.Seed))
	}

	search := textinput.New()
	search.Placeholder = "Search..."

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := model{
		studio:   s,
		client:   client,
		saver:    saver,
		prompt:   prompt,
		negative: negative,
		seed:     seed,
		search:   search,
		spinner:  sp,
		images:   make(map[string][]byte),
	}
	m.resize()
	return m
}

// panelWidths splits the screen between the sidebar and the main panel.
func (m model) panelWidths() (side, main int) {
	side = max(32, int(float64(m.width)*0.3))
	return side, max(m.width-side, 0)
}

// resize fits the text fields to their panels.
func (m *model) resize() {
	side, main := m.panelWidths()
	m.prompt.Width = max(main-8, 40)
	m.search.Width = max(side-8, 12)
	m.seed.Width = max(side-12, 8)
	m.negative.Width = max(side-8, 12)
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, fetchBalance(m.client), m.fetchImages())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return m, nil
		}
		return m.click(msg.X, msg.Y)
	case focusSearchMsg:
		if g := m.studio.Dropdowns.Active(); g != nil && g.Name == msg.group {
			cmd := m.search.Focus()
			return m, cmd
		}
		return m, nil
	case imageMsg:
		if msg.err != nil {
			logger.Warn("Could not load image", "ref", msg.ref, "err", msg.err)
			delete(m.images, msg.ref)
			return m, nil
		}
		m.images[msg.ref] = msg.data
		return m, nil
	case studio.Action:
		next, cmd := m.dispatch(msg)
		return next, tea.Batch(cmd, next.(model).fetchImages())
	case spinner.TickMsg:
		if !m.studio.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m model) dispatch(a studio.Action) (tea.Model, tea.Cmd) {
	effects := m.studio.Dispatch(a)
	if m.studio.Dropdowns.Active() == nil {
		m.search.Blur()
		m.search.Reset()
		m.optCursor = 0
	}
	if m.gridCursor >= len(m.studio.Cards) {
		m.gridCursor = 0
	}
	return m, m.runEffects(effects)
}

// fetchImages loads every grid image not loaded or loading yet. A nil
// entry marks a fetch in flight.
func (m model) fetchImages() tea.Cmd {
	var cmds []tea.Cmd
	for _, c := range m.studio.Cards {
		ref := c.Display()
		if _, ok := m.images[ref]; !ok {
			m.images[ref] = nil
			cmds = append(cmds, fetchImage(m.client, ref))
		}
	}
	return tea.Batch(cmds...)
}

// sidebarMenuTop is the sidebar row of the first dropdown label, below the
// title and a blank line.
const sidebarMenuTop = 2

// menuRows locates the open menu in the sidebar: its label row, its last
// row and the row of its first option. Closed menus take three rows each.
func (m model) menuRows() (top, bottom, items int, ok bool) {
	row := sidebarMenuTop
	for _, f := range []focus{focusModel, focusFormat, focusStyle} {
		g := m.studio.Dropdowns.Get(dropdownFocus[f])
		if g == nil {
			row++
			continue
		}
		if g.IsOpen() {
			items = row + 3
			return row, items + max(len(g.Visible()), 1) - 1, items, true
		}
		row += 3
	}
	return 0, 0, 0, false
}

// click handles a mouse press. Presses inside the open menu act on it;
// presses anywhere else close it.
func (m model) click(x, y int) (tea.Model, tea.Cmd) {
	g := m.studio.Dropdowns.Active()
	if g == nil {
		return m, nil
	}
	side, _ := m.panelWidths()
	top, bottom, items, ok := m.menuRows()
	if !ok || x >= side || y < top || y > bottom {
		return m.dispatch(studio.CloseDropdowns{})
	}

	visible := g.Visible()
	switch i := y - items; {
	case y == top+1:
		return m.dispatch(studio.ToggleDropdown{Group: g.Name})
	case y == items-1:
		if !m.search.Focused() {
			cmd := m.search.Focus()
			return m, cmd
		}
	case i >= 0 && i < len(visible):
		return m.dispatch(studio.SelectOption{Group: g.Name, Value: visible[i].Value})
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Escape):
		if m.studio.Dropdowns.Active() != nil {
			return m.dispatch(studio.CloseDropdowns{})
		}
		return m.dispatch(studio.DismissNotice{})
	case key.Matches(msg, keys.Generate):
		return m.dispatch(studio.Submit{})
	case key.Matches(msg, keys.Regenerate):
		mm, cmd := m.dispatch(studio.Regenerate{})
		next := mm.(model)
		next.prompt.SetValue(next.studio.Prompt)
		return next, cmd
	case key.Matches(msg, keys.Next):
		return m.moveFocus(1)
	case key.Matches(msg, keys.Prev):
		return m.moveFocus(-1)
	}

	if g := m.studio.Dropdowns.Active(); g != nil {
		return m.handleMenuKey(g, msg)
	}

	switch m.focus {
	case focusPrompt:
		if msg.String() == "enter" {
			return m.dispatch(studio.Submit{})
		}
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		m.studio.Dispatch(studio.SetPrompt{Text: m.prompt.Value()})
		return m, cmd
	case focusModel, focusFormat, focusStyle:
		if key.Matches(msg, keys.Enter, keys.Down) {
			return m.dispatch(studio.ToggleDropdown{Group: dropdownFocus[m.focus]})
		}
	case focusAspect:
		if ratio, ok := cycle(validAspectRatios(), m.studio.Aspect, msg); ok {
			return m.dispatch(studio.SelectAspect{Ratio: ratio})
		}
	case focusCount:
		if label, ok := cycle(studio.CountPresets, m.studio.Count, msg); ok {
			return m.dispatch(studio.SelectCount{Label: label})
		}
	case focusPrivate:
		if key.Matches(msg, keys.Enter) {
			return m.dispatch(studio.SetPrivateMode{On: !m.studio.PrivateMode})
		}
	case focusSteps:
		if d := delta(msg); d != 0 {
			return m.dispatch(studio.SetSteps{Steps: m.studio.Steps + d})
		}
	case focusGuidance:
		if d := delta(msg); d != 0 {
			return m.dispatch(studio.SetGuidanceScale{Scale: m.studio.GuidanceScale + float64(d)*0.5})
		}
	case focusSeed:
		var cmd tea.Cmd
		m.seed, cmd = m.seed.Update(msg)
		m.studio.Dispatch(studio.SetSeed{Raw: m.seed.Value()})
		return m, cmd
	case focusNegative:
		var cmd tea.Cmd
		m.negative, cmd = m.negative.Update(msg)
		m.studio.Dispatch(studio.SetNegativePrompt{Text: m.negative.Value()})
		return m, cmd
	case focusGrid:
		return m.handleGridKey(msg)
	}
	return m, nil
}

// handleMenuKey routes keys to the open menu. Typing only ever edits the
// search; it never closes the menu.
func (m model) handleMenuKey(g *dropdown.Group, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := g.Visible()
	switch {
	case key.Matches(msg, keys.Up):
		if m.optCursor > 0 {
			m.optCursor--
		}
		return m, nil
	case key.Matches(msg, keys.Down):
		if m.optCursor < len(visible)-1 {
			m.optCursor++
		}
		return m, nil
	case msg.String() == "enter":
		if m.optCursor < len(visible) {
			return m.dispatch(studio.SelectOption{Group: g.Name, Value: visible[m.optCursor].Value})
		}
		return m, nil
	}
	if !m.search.Focused() {
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.optCursor = 0
	m.studio.Dispatch(studio.SearchDropdown{Group: g.Name, Term: m.search.Value()})
	return m, cmd
}

func (m model) handleGridKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.studio.Cards)
	if n == 0 {
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.Left, keys.Up):
		m.gridCursor = (m.gridCursor + n - 1) % n
	case key.Matches(msg, keys.Right, keys.Down):
		m.gridCursor = (m.gridCursor + 1) % n
	case key.Matches(msg, keys.Enter):
		return m.dispatch(studio.SelectCard{Index: m.gridCursor})
	case key.Matches(msg, keys.Download):
		return m.dispatch(studio.Download{Index: m.gridCursor})
	case key.Matches(msg, keys.NextFilter):
		m.filter = (m.filter + 1) % len(api.Filters)
	case key.Matches(msg, keys.Filter):
		return m.dispatch(studio.ApplyFilter{Filter: api.Filters[m.filter], Intensity: 0.5})
	}
	return m, nil
}

// moveFocus leaves the current control, which counts as interacting
// outside any open menu.
func (m model) moveFocus(step int) (tea.Model, tea.Cmd) {
	mm, _ := m.dispatch(studio.CloseDropdowns{})
	m = mm.(model)
	m.prompt.Blur()
	m.negative.Blur()
	m.seed.Blur()
	m.focus = (m.focus + focus(step) + numFocus) % numFocus

	var cmd tea.Cmd
	switch m.focus {
	case focusPrompt:
		cmd = m.prompt.Focus()
	case focusNegative:
		cmd = m.negative.Focus()
	case focusSeed:
		cmd = m.seed.Focus()
	}
	return m, cmd
}

// cycle moves through choices with left/right, starting from current.
func cycle(choices []string, current string, msg tea.KeyMsg) (string, bool) {
	d := delta(msg)
	if d == 0 {
		return "", false
	}
	i := -1
	for n, c := range choices {
		if c == current {
			i = n
		}
	}
	if i < 0 {
		if d > 0 {
			return choices[0], true
		}
		return choices[len(choices)-1], true
	}
	return choices[(i+d+len(choices))%len(choices)], true
}

func delta(msg tea.KeyMsg) int {
	switch {
	case key.Matches(msg, keys.Left):
		return -1
	case key.Matches(msg, keys.Right):
		return 1
	}
	return 0
}

/* VIEW */

var (
	accent       = lipgloss.Color("205")
	muted        = lipgloss.Color("240")
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle   = lipgloss.NewStyle().Foreground(muted)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("86"))
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	markStyle    = lipgloss.NewStyle().Background(lipgloss.Color("204")).Foreground(lipgloss.Color("0"))
	badgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("63")).Padding(0, 1)
	cardStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("204")).Padding(0, 1)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("86")).Padding(0, 1)
)

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	if m.studio.Loading {
		return lipgloss.NewStyle().MaxWidth(m.width).MaxHeight(m.height).Render(m.spinnerPopup())
	}

	sideWidth, mainWidth := m.panelWidths()

	return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(sideWidth), m.mainView(mainWidth))
}

func (m model) spinnerPopup() string {
	style := lipgloss.NewStyle().
		Width(40).
		Height(3).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Align(lipgloss.Center, lipgloss.Center)

	content := fmt.Sprintf("%s Generating images...", m.spinner.View())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, style.Render(content))
}

func (m model) label(f focus, text string) string {
	if m.focus == f {
		return focusedStyle.Render("> " + text)
	}
	return labelStyle.Render("  " + text)
}

func (m model) sidebarView(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("fluxstudio"))
	if bal := m.studio.Balance(); bal != "" {
		b.WriteString(labelStyle.Render("  tokens " + bal))
	}
	b.WriteString("\n\n")

	for _, f := range []focus{focusModel, focusFormat, focusStyle} {
		b.WriteString(m.dropdownView(f, m.studio.Dropdowns.Get(dropdownFocus[f])))
		b.WriteString("\n")
	}

	b.WriteString(m.label(focusAspect, "Image Dimensions") + "\n  ")
	for _, p := range studio.AspectPresets {
		b.WriteString(chip(p.Ratio, p.Ratio == m.studio.Aspect) + " ")
	}
	w, h := m.studio.Dimensions()
	b.WriteString(labelStyle.Render(fmt.Sprintf("\n  %dx%d", w, h)) + "\n\n")

	b.WriteString(m.label(focusCount, "Number of Images") + "\n  ")
	for _, c := range studio.CountPresets {
		b.WriteString(chip(c, c == m.studio.Count) + " ")
	}
	b.WriteString("\n\n")

	private := "[ ]"
	if m.studio.PrivateMode {
		private = "[x]"
	}
	b.WriteString(m.label(focusPrivate, "Private Mode "+private) + "\n\n")

	b.WriteString(titleStyle.Render("Advanced Settings") + "\n")
	b.WriteString(m.label(focusSteps, fmt.Sprintf("Steps          %d", m.studio.Steps)) + "\n")
	b.WriteString(m.label(focusGuidance, fmt.Sprintf("Guidance Scale %.1f", m.studio.GuidanceScale)) + "\n")
	b.WriteString(m.label(focusSeed, "Seed") + " " + m.seed.View() + "\n")
	b.WriteString(m.label(focusNegative, "Negative Prompt") + "\n  " + m.negative.View() + "\n")

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		Render(b.String())
}

func chip(text string, active bool) string {
	if active {
		return activeStyle.Render(" " + text + " ")
	}
	return " " + text + " "
}

func (m model) dropdownView(f focus, g *dropdown.Group) string {
	if g == nil {
		return ""
	}
	sel := g.Selected()
	header := sel.Name
	if sel.Type != "" {
		header += labelStyle.Render(" · " + sel.Type)
	}
	arrow := "▾"
	if g.IsOpen() {
		arrow = "▴"
	}

	var b strings.Builder
	b.WriteString(m.label(f, g.Name) + "\n  " + header + " " + arrow + "\n")
	if !g.IsOpen() {
		return b.String()
	}

	b.WriteString("  " + m.search.View() + "\n")
	visible := g.Visible()
	if len(visible) == 0 {
		b.WriteString(labelStyle.Render("  "+g.NoResults()) + "\n")
		return b.String()
	}
	for i, match := range visible {
		cursor := "   "
		if i == m.optCursor {
			cursor = focusedStyle.Render(" > ")
		}
		line := highlight(match.Name, match.NameSpans)
		if match.Type != "" {
			line = labelStyle.Render(highlight(match.Type, match.TypeSpans)+" ") + line
		}
		if match.Value == g.Value() {
			line += focusedStyle.Render(" ✓")
		}
		b.WriteString(cursor + line + "\n")
	}
	return b.String()
}

// highlight marks the matched ranges of s.
func highlight(s string, spans []dropdown.Span) string {
	if len(spans) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(s[last:sp.Start])
		b.WriteString(markStyle.Render(s[sp.Start:sp.End]))
		last = sp.End
	}
	b.WriteString(s[last:])
	return b.String()
}

func (m model) mainView(width int) string {
	var b strings.Builder

	b.WriteString(m.label(focusPrompt, "Prompt") + "\n  " + m.prompt.View() + "\n\n")
	b.WriteString("  " + activeStyle.Render(fmt.Sprintf(" Generate  %s ", m.studio.TokenCost())))
	b.WriteString(labelStyle.Render("  ctrl+g generate · ctrl+r regenerate · tab move · esc close") + "\n\n")

	if n := m.studio.Notice; n != nil {
		style := infoStyle
		if n.IsError() {
			style = errorStyle
		}
		b.WriteString("  " + style.Render(n.Message) + labelStyle.Render("  (esc to dismiss)") + "\n\n")
	}

	if m.studio.ResultsVisible {
		b.WriteString(m.gridView(width))
	}

	return lipgloss.NewStyle().Width(width).Height(m.height).Padding(0, 1).Render(b.String())
}

func (m model) gridView(width int) string {
	var b strings.Builder
	b.WriteString(m.label(focusGrid, "Prompt: ") + m.studio.Caption + "\n")
	if m.focus == focusGrid {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  ←/→ move · enter select · d download · f apply %s · t change filter",
			api.Filters[m.filter])) + "\n")
	}
	b.WriteString("\n")

	var cards []string
	for i, c := range m.studio.Cards {
		cards = append(cards, m.cardView(i, c))
	}
	b.WriteString(wrapCards(cards, width-2) + "\n")

	if len(m.studio.Cards) > 0 && m.gridCursor < len(m.studio.Cards) {
		card := m.studio.Cards[m.gridCursor]
		if data := m.images[card.Display()]; len(data) > 0 {
			previewHeight := max(m.height-24, 8)
			if out, err := renderImage(data, width-4, previewHeight); err == nil {
				b.WriteString(out + "\n")
			} else {
				logger.Warn("Could not render image", "err", err)
			}
		}
	}
	return b.String()
}

// wrapCards lays cards out left to right and starts a new row when the
// next card would not fit in width.
func wrapCards(cards []string, width int) string {
	var rows, row []string
	used := 0
	for _, c := range cards {
		w := lipgloss.Width(c)
		if len(row) > 0 && used+w > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, used = nil, 0
		}
		row = append(row, c)
		used += w
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m model) cardView(i int, c studio.Card) string {
	style := cardStyle
	if i == m.studio.SelectedCard {
		style = style.BorderForeground(accent)
	}
	title := fmt.Sprintf("Image %d", i+1)
	if m.focus == focusGrid && i == m.gridCursor {
		title = focusedStyle.Render(title)
	}
	if i == m.studio.SelectedCard {
		title += focusedStyle.Render(" ★")
	}
	if c.Filtered != "" {
		title += labelStyle.Render(" filtered")
	}
	badges := lipgloss.JoinHorizontal(lipgloss.Top,
		badgeStyle.Render(c.Model), " ",
		badgeStyle.Render(c.Style), " ",
		badgeStyle.Render(c.Resolution),
	)
	return style.Render(title + "\n" + badges + "\n" + labelStyle.Render("[d] download  [enter] expand"))
}
