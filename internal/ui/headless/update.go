package headless

import (
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"tagdeck/internal/grid"
	"tagdeck/internal/macros"
)

func (m *headlessModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ui.Width = msg.Width
		m.ui.Height = msg.Height
		m.ui.Search.Width = min(msg.Width-16, defaultSearchWidth)
		m.ui.LogView.Width = msg.Width - 4
		m.ui.LogView.Height = defaultLogHeight
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case logMsg:
		m.ui.appendLog(string(msg))
		return m, m.waitForLog()

	case statusMsg:
		m.ui.Status = string(msg)
		return m, m.waitForStatus()

	case titleMsg:
		m.ui.Title = string(msg)
		return m, m.waitForTitle()

	case gridChangedMsg:
		m.ui.syncGrid(m.app.Grid())
		return m, m.waitForGrid()

	case openDoneMsg:
		// Failures already went through the status and title feeds.
		m.ui.syncGrid(m.app.Grid())
		return m, nil

	case tickMsg:
		return m, tickCmd()
	}

	return m, nil
}

func (m *headlessModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.ui.Search.Focused() {
		switch msg.String() {
		case "enter":
			query := m.ui.Search.Value()
			m.ui.Search.Blur()
			return m, m.backgroundCmd(func() { m.app.Grid().SetQuery(query) })
		case "esc":
			m.ui.Search.Blur()
			return m, nil
		case "tab":
			if suggestions := m.app.Completions(m.ui.Search.Value()); len(suggestions) > 0 {
				m.ui.Search.SetValue(suggestions[0])
				m.ui.Search.CursorEnd()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			m.ui.Search, cmd = m.ui.Search.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.ui.Search.Focus()
		return m, nil
	case "left", "h":
		return m, m.backgroundCmd(func() { m.app.Grid().MovePage(-1) })
	case "right", "l":
		return m, m.backgroundCmd(func() { m.app.Grid().MovePage(1) })
	case "home":
		return m, m.backgroundCmd(func() { m.app.Grid().SetPage(0) })
	case "end":
		return m, m.backgroundCmd(func() { m.app.Grid().SetPage(m.ui.Pages - 1) })
	case "ctrl+a":
		m.app.Grid().SelectAll()
		return m, nil
	case "esc":
		m.app.Grid().ClearSelection()
		return m, nil
	case "+", "=":
		return m, m.changeThumbSizeCmd(-1)
	case "-":
		return m, m.changeThumbSizeCmd(1)
	case "a":
		return m, m.backgroundCmd(func() { _ = m.app.RunMacroOnSelection(macros.Autofill) })
	case "u":
		return m, m.backgroundCmd(func() { _ = m.app.RunMacroOnSelection(macros.CleanURL) })
	case "b":
		return m, m.backgroundCmd(func() { _, _ = m.app.Backup() })
	case "r":
		return m, m.backgroundCmd(func() { _ = m.app.RefreshDirectories() })
	case "x":
		return m, m.backgroundCmd(func() { _ = m.app.RemoveSelection() })
	case "g":
		m.ui.ShowLogs = !m.ui.ShowLogs
		return m, nil
	}
	return m, nil
}

func (m *headlessModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		if m.ui.ShowLogs {
			var cmd tea.Cmd
			m.ui.LogView, cmd = m.ui.LogView.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	if zone.Get(zonePagerPrev).InBounds(msg) {
		return m, m.backgroundCmd(func() { m.app.Grid().MovePage(-1) })
	}
	if zone.Get(zonePagerNext).InBounds(msg) {
		return m, m.backgroundCmd(func() { m.app.Grid().MovePage(1) })
	}
	if zone.Get(zoneSearch).InBounds(msg) {
		m.ui.Search.Focus()
		return m, nil
	}

	for i := range m.ui.Slots {
		if !zone.Get(slotZoneID(i)).InBounds(msg) {
			continue
		}
		mode := grid.ClickPlain
		if msg.Ctrl {
			mode = grid.ClickAppend
		} else if msg.Shift {
			mode = grid.ClickBridge
		}
		m.app.Grid().Click(i, mode)
		m.ui.syncGrid(m.app.Grid())
		return m, nil
	}
	return m, nil
}

// backgroundCmd runs op off the update loop; op's effects flow back through
// the status and grid feeds.
func (m *headlessModel) backgroundCmd(op func()) tea.Cmd {
	return func() tea.Msg {
		op()
		return nil
	}
}

func (m *headlessModel) changeThumbSizeCmd(delta int) tea.Cmd {
	index := m.app.Grid().ThumbSizeIndex() + delta
	if index < 0 || index >= len(grid.ThumbSizes) {
		return nil
	}
	return m.backgroundCmd(func() { m.app.SetThumbSizeIndex(index) })
}
