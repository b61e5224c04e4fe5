package headless

import (
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"tagdeck/internal/grid"
)

const (
	zoneSearch    = "search"
	zonePagerPrev = "pager-prev"
	zonePagerNext = "pager-next"

	cellWidth   = 14
	swatchLines = 3
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	badgeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			Width(cellWidth)
	cellSelectedStyle = cellStyle.
				BorderForeground(lipgloss.Color("39")).
				Bold(true)
)

func slotZoneID(index int) string {
	return fmt.Sprintf("slot-%d", index)
}

func (m *headlessModel) View() string {
	var b strings.Builder

	header := titleStyle.Render(m.ui.Title)
	if m.ui.State == grid.StateLoading {
		header += statusStyle.Render("  rendering...")
	}
	b.WriteString(header + "\n")
	b.WriteString(zone.Mark(zoneSearch, "search: "+m.ui.Search.View()) + "\n\n")

	b.WriteString(m.renderGrid() + "\n")
	b.WriteString(m.renderPagerLine() + "\n")
	b.WriteString(statusStyle.Render(ansi.Truncate(m.ui.Status, max(m.ui.Width-2, 10), "...")) + "\n")

	if m.ui.ShowLogs {
		b.WriteString(panelStyle.Render(m.ui.LogView.View()) + "\n")
	}
	b.WriteString(helpStyle.Render("/: search  h/l: page  click: select (ctrl: add, shift: range)  +/-: size  a: autofill  b: backup  r: rescan  g: logs  q: quit"))

	return zone.Scan(b.String())
}

func (m *headlessModel) renderGrid() string {
	if m.ui.State == grid.StateEmpty {
		return statusStyle.Render("  No library open. Start with --library <path> or enable open-on-start.")
	}
	if len(m.ui.Slots) == 0 {
		return statusStyle.Render("  No results.")
	}

	columns := max(1, (m.ui.Width-2)/(cellWidth+2))
	showNames := m.app.Settings().ShowFilenames

	var rows []string
	var cells []string
	for _, slot := range m.ui.Slots {
		cells = append(cells, m.renderCell(slot, showNames))
		if len(cells) == columns {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
			cells = nil
		}
	}
	if len(cells) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *headlessModel) renderCell(slot grid.Slot, showName bool) string {
	swatch := lipgloss.NewStyle().
		Foreground(lipgloss.Color(swatchColor(slot))).
		Render(strings.Repeat(strings.Repeat("█", cellWidth)+"\n", swatchLines-1) + strings.Repeat("█", cellWidth))

	var badges []string
	if slot.Archived {
		badges = append(badges, "[A]")
	}
	if slot.Favorite {
		badges = append(badges, "[F]")
	}
	line := badgeStyle.Render(strings.Join(badges, " "))
	if showName && slot.Entry != nil {
		name := ansi.Truncate(path.Base(slot.Entry.Path), cellWidth-len(strings.Join(badges, " "))-1, "…")
		if line != "" {
			line += " "
		}
		line += name
	}

	body := swatch
	if line != "" {
		body += "\n" + ansi.Truncate(line, cellWidth, "…")
	}

	style := cellStyle
	if slot.Selected {
		style = cellSelectedStyle
	}
	return zone.Mark(slotZoneID(slot.Index), style.Render(body))
}

func (m *headlessModel) renderPagerLine() string {
	pages := max(m.ui.Pages, 1)
	line := fmt.Sprintf("%s %s %s  page %d/%d  %d entries",
		zone.Mark(zonePagerPrev, "[<]"),
		m.ui.Pager.View(),
		zone.Mark(zonePagerNext, "[>]"),
		m.ui.Pager.Page+1, pages, m.ui.Total,
	)
	if m.ui.Selected > 0 {
		line += fmt.Sprintf("  (%d selected)", m.ui.Selected)
	}
	return line
}

// swatchColor reduces a slot's thumbnail to one representative terminal
// color by averaging its pixels.
func swatchColor(slot grid.Slot) string {
	if slot.Failed {
		return "#6e2e2e"
	}
	if slot.Image == nil || slot.Placeholder {
		return "#3a3a4a"
	}
	return averageHex(slot.Image)
}

func averageHex(img image.Image) string {
	bounds := img.Bounds()
	if bounds.Empty() {
		return "#3a3a4a"
	}
	// Sample a coarse grid instead of every pixel; thumbnails can be large.
	stepX := max(bounds.Dx()/16, 1)
	stepY := max(bounds.Dy()/16, 1)
	var r, g, b, n uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r += uint64(pr >> 8)
			g += uint64(pg >> 8)
			b += uint64(pb >> 8)
			n++
		}
	}
	if n == 0 {
		return "#3a3a4a"
	}
	return fmt.Sprintf("#%02x%02x%02x", r/n, g/n, b/n)
}
