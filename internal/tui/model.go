package tui

import (
	"context"
	"slices"

	"github.com/sahilm/fuzzy"

	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/pathutil"

	tea "github.com/charmbracelet/bubbletea"
)

// SortColumn represents the current sort field.
type SortColumn int

const (
	SortBySize SortColumn = iota
	SortByName
)

func (s SortColumn) String() string {
	switch s {
	case SortByName:
		return "name"
	default:
		return "size"
	}
}

// Mode selects what the listing shows.
type Mode int

const (
	ModeBrowse Mode = iota
	ModeTop
	ModeSearch
)

const (
	topLimit    = 200
	searchLimit = 500
)

// Index is the query surface the browser reads from.
type Index interface {
	Summary() (entry.Summary, error)
	DirectoryContent(ctx context.Context, path, sortBy string) (*entry.DirectoryContent, error)
	TopFiles(ctx context.Context, limit int) ([]entry.File, error)
	SearchFiles(ctx context.Context, term string, limit int) ([]entry.File, error)
}

// SaveFunc writes the marked paths to a list file.
type SaveFunc func(path string, lines []string) error

// row is one line of the listing. Path is the full path of a directory, or
// parent plus name for a file.
type row struct {
	Kind      entry.Kind
	Name      string
	Path      string
	Parent    string
	SizeBytes int64
	SizeStr   string
	FileCount int64
}

// Model holds the TUI state.
type Model struct {
	index    Index
	sep      byte
	save     SaveFunc
	listPath string

	summary     *entry.Summary
	mode        Mode
	currentPath string
	current     *entry.Dir
	allRows     []row
	rows        []row
	cursor      int
	sort        SortColumn
	width       int
	height      int

	filter       string
	filterActive bool
	search       string
	searchActive bool

	marked []string
	status string
	err    error
}

// NewModel creates a new TUI model over index. sep is the report's path
// separator.
func NewModel(index Index, sep byte) *Model {
	return &Model{
		index: index,
		sep:   sep,
		sort:  SortBySize,
	}
}

// SetListFile enables the "w" key, which writes marked paths to path.
func (m *Model) SetListFile(path string, save SaveFunc) {
	m.listPath = path
	m.save = save
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.loadInitialData
}

type dataLoadedMsg struct {
	summary entry.Summary
	content *entry.DirectoryContent
	err     error
}

func (m *Model) loadInitialData() tea.Msg {
	summary, err := m.index.Summary()
	if err != nil {
		return dataLoadedMsg{err: err}
	}

	content, err := m.index.DirectoryContent(context.Background(), summary.RootPath, m.sort.String())
	if err != nil {
		return dataLoadedMsg{err: err}
	}

	return dataLoadedMsg{summary: summary, content: content}
}

type entriesLoadedMsg struct {
	path    string
	content *entry.DirectoryContent
	err     error
}

func (m *Model) loadEntries(path string) tea.Cmd {
	sortBy := m.sort.String()
	return func() tea.Msg {
		content, err := m.index.DirectoryContent(context.Background(), path, sortBy)
		return entriesLoadedMsg{path: path, content: content, err: err}
	}
}

type filesLoadedMsg struct {
	mode  Mode
	files []entry.File
	err   error
}

func (m *Model) loadTopFiles() tea.Cmd {
	return func() tea.Msg {
		files, err := m.index.TopFiles(context.Background(), topLimit)
		return filesLoadedMsg{mode: ModeTop, files: files, err: err}
	}
}

func (m *Model) loadSearch(term string) tea.Cmd {
	return func() tea.Msg {
		files, err := m.index.SearchFiles(context.Background(), term, searchLimit)
		return filesLoadedMsg{mode: ModeSearch, files: files, err: err}
	}
}

type listSavedMsg struct {
	path  string
	count int
	err   error
}

func (m *Model) saveMarked() tea.Cmd {
	path, save := m.listPath, m.save
	lines := slices.Clone(m.marked)
	return func() tea.Msg {
		return listSavedMsg{path: path, count: len(lines), err: save(path, lines)}
	}
}

func (m *Model) helpLine() string {
	switch {
	case m.filterActive:
		return "Type to filter | Enter: apply | Esc: clear | q: quit"
	case m.searchActive:
		return "Type a search term | Enter: search | Esc: cancel"
	case m.mode != ModeBrowse:
		return "↑/↓ move | Enter: open parent | Space: mark | w: write list | Esc: back | q: quit"
	}
	return "↑/↓ move | Enter: open | Backspace: up | s/n: sort | /: filter | t: top | S: search | Space: mark | q: quit"
}

func (m *Model) rootPath() string {
	if m.summary == nil {
		return ""
	}
	return m.summary.RootPath
}

func contentRows(content *entry.DirectoryContent, sep byte) []row {
	rows := make([]row, 0, len(content.Directories)+len(content.Files))
	for _, d := range content.Directories {
		rows = append(rows, row{
			Kind:      entry.KindDir,
			Name:      pathutil.Base(d.Path, sep),
			Path:      d.Path,
			SizeBytes: d.SizeBytes,
			SizeStr:   d.SizeStr,
			FileCount: d.FileCount,
		})
	}
	for _, f := range content.Files {
		rows = append(rows, fileRow(f, f.Name, sep))
	}
	return rows
}

// fileRows lists files by full path, for listings that span directories.
func fileRows(files []entry.File, sep byte) []row {
	rows := make([]row, 0, len(files))
	for _, f := range files {
		r := fileRow(f, "", sep)
		r.Name = r.Path
		rows = append(rows, r)
	}
	return rows
}

func fileRow(f entry.File, name string, sep byte) row {
	return row{
		Kind:      entry.KindFile,
		Name:      name,
		Path:      joinPath(f.ParentPath, f.Name, sep),
		Parent:    f.ParentPath,
		SizeBytes: f.SizeBytes,
		SizeStr:   f.SizeStr,
	}
}

func joinPath(parent, name string, sep byte) string {
	if parent == "" {
		return name
	}
	if parent[len(parent)-1] == sep {
		return parent + name
	}
	return parent + string(sep) + name
}

func (m *Model) setRows(rows []row) {
	m.allRows = rows
	m.filter = ""
	m.filterActive = false
	m.applyFilter()
}

type rowSource []row

func (s rowSource) String(i int) string { return s[i].Name }
func (s rowSource) Len() int            { return len(s) }

// applyFilter narrows the listing to fuzzy matches of the filter, keeping
// the listing's own order.
func (m *Model) applyFilter() {
	if m.filter == "" {
		m.rows = m.allRows
	} else {
		matches := fuzzy.FindFrom(m.filter, rowSource(m.allRows))
		idx := make([]int, len(matches))
		for i, match := range matches {
			idx[i] = match.Index
		}
		slices.Sort(idx)
		filtered := make([]row, len(idx))
		for i, j := range idx {
			filtered[i] = m.allRows[j]
		}
		m.rows = filtered
	}
	m.cursor = 0
}

func (m *Model) isMarked(path string) bool {
	return slices.Contains(m.marked, path)
}

func (m *Model) toggleMark(path string) {
	if i := slices.Index(m.marked, path); i >= 0 {
		m.marked = slices.Delete(m.marked, i, i+1)
		return
	}
	m.marked = append(m.marked, path)
}
