package tui

import (
	"fmt"

	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/pathutil"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.summary = &msg.summary
		m.mode = ModeBrowse
		m.currentPath = msg.summary.RootPath
		m.current = msg.content.Directory
		m.setRows(contentRows(msg.content, m.sep))
		return m, nil

	case entriesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.mode = ModeBrowse
		m.currentPath = msg.path
		m.current = msg.content.Directory
		m.setRows(contentRows(msg.content, m.sep))
		return m, nil

	case filesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.mode = msg.mode
		m.setRows(fileRows(msg.files, m.sep))
		return m, nil

	case listSavedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Save failed: %v", msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("Wrote %d paths to %s", msg.count, msg.path)
		m.marked = nil
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filterActive {
		return m.handleFilterKey(msg)
	}
	if m.searchActive {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		return m, nil

	case "enter", "l", "right":
		sel, ok := m.selected()
		if !ok {
			return m, nil
		}
		if sel.Kind == entry.KindDir {
			return m, m.loadEntries(sel.Path)
		}
		if m.mode != ModeBrowse && sel.Parent != "" {
			return m, m.loadEntries(sel.Parent)
		}
		return m, nil

	case "backspace", "h", "left":
		if m.mode != ModeBrowse {
			return m, m.loadEntries(m.currentPath)
		}
		if m.currentPath != "" && m.currentPath != m.rootPath() {
			if parent := pathutil.Parent(m.currentPath, m.sep); parent != "" {
				return m, m.loadEntries(parent)
			}
		}
		return m, nil

	case "esc":
		if m.mode != ModeBrowse {
			return m, m.loadEntries(m.currentPath)
		}
		if m.filter != "" {
			m.filter = ""
			m.applyFilter()
		}
		return m, nil

	case "s":
		m.sort = SortBySize
		if m.mode == ModeBrowse {
			return m, m.loadEntries(m.currentPath)
		}
		return m, nil

	case "n":
		m.sort = SortByName
		if m.mode == ModeBrowse {
			return m, m.loadEntries(m.currentPath)
		}
		return m, nil

	case "t":
		return m, m.loadTopFiles()

	case "S":
		m.searchActive = true
		m.search = ""
		return m, nil

	case "/":
		m.filterActive = true
		return m, nil

	case " ":
		if sel, ok := m.selected(); ok {
			m.toggleMark(sel.Path)
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		}
		return m, nil

	case "w":
		if m.save == nil || m.listPath == "" {
			m.status = "No list file configured"
			return m, nil
		}
		if len(m.marked) == 0 {
			m.status = "Nothing marked"
			return m, nil
		}
		return m, m.saveMarked()

	case "home", "g":
		m.cursor = 0
		return m, nil

	case "end", "G":
		if len(m.rows) > 0 {
			m.cursor = len(m.rows) - 1
		}
		return m, nil

	case "pgup":
		m.cursor -= 10
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case "pgdown":
		m.cursor += 10
		if m.cursor >= len(m.rows) {
			m.cursor = len(m.rows) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filterActive = false
		return m, nil

	case "esc":
		m.filterActive = false
		m.filter = ""
		m.applyFilter()
		return m, nil

	case "backspace":
		if len(m.filter) > 0 {
			runes := []rune(m.filter)
			m.filter = string(runes[:len(runes)-1])
			m.applyFilter()
		}
		return m, nil

	case "ctrl+c":
		return m, tea.Quit
	}

	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		m.filter += msg.String()
		m.applyFilter()
	}
	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchActive = false
		if m.search == "" {
			return m, nil
		}
		return m, m.loadSearch(m.search)

	case "esc":
		m.searchActive = false
		m.search = ""
		return m, nil

	case "backspace":
		if len(m.search) > 0 {
			runes := []rune(m.search)
			m.search = string(runes[:len(runes)-1])
		}
		return m, nil

	case "ctrl+c":
		return m, tea.Quit
	}

	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		m.search += msg.String()
	}
	return m, nil
}

func (m *Model) selected() (row, bool) {
	if len(m.rows) == 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}
