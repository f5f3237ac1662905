package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/Micos01/dir-analysis/internal/entry"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err)
	}

	if m.summary == nil {
		return "Loading..."
	}

	var b strings.Builder
	headerLines := 0

	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\n")
		headerLines++
	}

	writeLine(titleStyle.Render("dirana - Disk Report Browser"))

	reportInfo := fmt.Sprintf("Root: %s | Total: %s | Dirs: %s | Files: %s",
		truncateMiddle(m.summary.RootPath, 40),
		FormatSize(m.summary.TotalSizeBytes),
		FormatCount(m.summary.TotalDirs),
		FormatCount(m.summary.TotalFiles),
	)
	writeLine(statsStyle.Render(reportInfo))

	writeLine(breadcrumbStyle.Render(m.locationLabel()))

	dirInfo := ""
	if m.mode == ModeBrowse && m.current != nil {
		dirInfo = fmt.Sprintf("Reported: %s (%s) | %s files directly, %s",
			m.current.SizeStr,
			FormatSize(m.current.SizeBytes),
			FormatCount(m.current.FileCount),
			FormatSize(m.current.FileBytes),
		)
	}

	status := fmt.Sprintf("Items: %s", FormatCount(int64(len(m.rows))))
	if m.filter != "" {
		status += fmt.Sprintf(" | Filter: %q", m.filter)
	}
	if len(m.marked) > 0 {
		status += fmt.Sprintf(" | Marked: %d", len(m.marked))
	}
	if sel, ok := m.selected(); ok {
		status += fmt.Sprintf(" | Sel: %s (%s)", sel.Name, sel.SizeStr)
	}
	writeLine(statusStyle.Render(status))

	switch {
	case m.filterActive:
		writeLine(filterStyle.Render(fmt.Sprintf("Filter: %s_", m.filter)))
	case m.searchActive:
		writeLine(filterStyle.Render(fmt.Sprintf("Search: %s_", m.search)))
	case m.status != "":
		writeLine(filterStyle.Render(m.status))
	}

	sizeLabel := headerLabel("SIZE", m.sort == SortBySize, "v")
	nameLabel := headerLabel("NAME", m.sort == SortByName, "^")

	footerLines := 2
	if dirInfo != "" {
		footerLines = 3
	}
	visibleRows := m.height - headerLines - footerLines
	if visibleRows < 5 {
		visibleRows = 5
	}

	startIdx := 0
	if m.cursor >= visibleRows {
		startIdx = m.cursor - visibleRows + 1
	}
	endIdx := min(len(m.rows), startIdx+visibleRows)

	widths := calcColumnWidths(m.rows, startIdx, endIdx, sizeLabel, "REPORTED", "FILES")
	nameWidth := calcNameWidth(m.width, widths)
	gap := strings.Repeat(" ", colGap)
	nameGap := strings.Repeat(" ", nameGapWidth)

	nameLabel = truncateRight(nameLabel, nameWidth)
	namePad := max(0, nameWidth-len(nameLabel))
	header := fmt.Sprintf("%*s%s%*s%s%*s%s%s%s%s%*s",
		widths.size, sizeLabel,
		gap,
		widths.reported, "REPORTED",
		gap,
		widths.files, "FILES",
		nameGap,
		nameLabel,
		strings.Repeat(" ", namePad),
		gap,
		barColWidth, "SIZE%",
	)
	writeLine(headerStyle.Render(header))

	total := m.barTotal()
	for i := startIdx; i < endIdx; i++ {
		b.WriteString(m.formatRow(m.rows[i], i == m.cursor, widths, nameWidth, total))
		b.WriteString("\n")
	}

	displayedRows := min(len(m.rows)-startIdx, visibleRows)
	for i := displayedRows; i < visibleRows; i++ {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if dirInfo != "" {
		b.WriteString(statsStyle.Render(dirInfo))
		b.WriteString("\n")
	}
	help := m.helpLine()
	if len(m.rows) > 0 {
		help = fmt.Sprintf("%s [%d/%d]", help, m.cursor+1, len(m.rows))
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m *Model) locationLabel() string {
	width := max(10, m.width-8)
	switch m.mode {
	case ModeTop:
		return fmt.Sprintf("Largest files (top %d)", topLimit)
	case ModeSearch:
		return fmt.Sprintf("Search: %s", truncateMiddle(m.search, width))
	default:
		return fmt.Sprintf("Path: %s", truncateMiddle(m.currentPath, width))
	}
}

// barTotal is the size rows are measured against: the open directory when
// browsing, the whole report otherwise.
func (m *Model) barTotal() int64 {
	if m.mode == ModeBrowse && m.current != nil {
		return m.current.SizeBytes
	}
	return m.summary.TotalSizeBytes
}

type columnWidths struct {
	size     int
	reported int
	files    int
}

const (
	colGap        = 2
	nameGapWidth  = 2
	minNameWidth  = 10
	markWidth     = 2                                         // "* " before marked names
	barBlockWidth = 10                                        // number of block characters
	barPctWidth   = 4                                         // " 78%" or "100%"
	barGapWidth   = 1                                         // space between blocks and pct
	barColWidth   = barBlockWidth + barGapWidth + barPctWidth // 15
)

func calcColumnWidths(rows []row, startIdx, endIdx int, sizeLabel, reportedLabel, filesLabel string) columnWidths {
	w := columnWidths{
		size:     len(sizeLabel),
		reported: len(reportedLabel),
		files:    len(filesLabel),
	}

	for i := startIdx; i < endIdx; i++ {
		r := rows[i]
		w.size = max(w.size, len(FormatSize(r.SizeBytes)))
		w.reported = max(w.reported, len(r.SizeStr))
		w.files = max(w.files, len(fileCount(r)))
	}

	return w
}

func calcNameWidth(totalWidth int, w columnWidths) int {
	used := w.size + w.reported + w.files + (colGap * 3) + nameGapWidth + barColWidth
	return max(minNameWidth, totalWidth-used)
}

func fileCount(r row) string {
	if r.Kind != entry.KindDir {
		return "-"
	}
	return FormatCount(r.FileCount)
}

func truncateRight(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func (m *Model) formatRow(r row, selected bool, widths columnWidths, nameWidth int, total int64) string {
	mark := "  "
	if m.isMarked(r.Path) {
		mark = "* "
	}

	rawName := r.Name
	if r.Kind == entry.KindDir {
		rawName += string(m.sep)
	}
	rawName = truncateRight(rawName, nameWidth-markWidth)

	var styledName string
	if r.Kind == entry.KindDir {
		styledName = dirStyle.Render(rawName)
	} else {
		styledName = fileStyle.Render(rawName)
	}
	if mark != "  " {
		mark = markStyle.Render(mark)
	}

	pad := max(0, nameWidth-markWidth-len(rawName))
	paddedName := mark + styledName + strings.Repeat(" ", pad)

	gap := strings.Repeat(" ", colGap)
	nameGap := strings.Repeat(" ", nameGapWidth)
	line := fmt.Sprintf("%*s%s%*s%s%*s%s%s%s%s",
		widths.size, FormatSize(r.SizeBytes),
		gap,
		widths.reported, r.SizeStr,
		gap,
		widths.files, fileCount(r),
		nameGap,
		paddedName,
		gap,
		formatBar(r.SizeBytes, total),
	)

	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

func formatBar(entryVal, parentTotal int64) string {
	if parentTotal <= 0 || entryVal <= 0 {
		empty := strings.Repeat("░", barBlockWidth)
		return barEmptyStyle.Render(empty) + fmt.Sprintf("  %3d%%", 0)
	}

	pct := float64(entryVal) / float64(parentTotal) * 100
	if pct > 100 {
		pct = 100
	}

	filled := int(math.Round(pct / 100 * float64(barBlockWidth)))
	if filled < 1 {
		filled = 1
	}
	if filled > barBlockWidth {
		filled = barBlockWidth
	}

	filledStr := barFilledStyle.Render(strings.Repeat("█", filled))
	emptyStr := barEmptyStyle.Render(strings.Repeat("░", barBlockWidth-filled))
	return filledStr + emptyStr + fmt.Sprintf("  %3d%%", int(math.Round(pct)))
}

func headerLabel(label string, active bool, dir string) string {
	if active {
		return label + dir
	}
	return label
}

func truncateMiddle(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	head := (maxLen - 3) / 2
	tail := maxLen - 3 - head
	return s[:head] + "..." + s[len(s)-tail:]
}
