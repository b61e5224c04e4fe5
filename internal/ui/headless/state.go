package headless

import (
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"tagdeck/internal/grid"
)

const (
	defaultSearchWidth  = 60
	searchCharLimit     = 512
	defaultLogHeight    = 8
	defaultWindowWidth  = 100
	defaultWindowHeight = 32
)

// uiState is the mutable presentation state the view renders from. Grid
// facts (slots, pages, totals) are projected into it whenever the
// controller reports a change, so rendering never reaches into locked
// structures.
type uiState struct {
	Search  textinput.Model
	Pager   paginator.Model
	LogView viewport.Model

	Title    string
	Status   string
	Slots    []grid.Slot
	Pages    int
	Total    int
	Selected int
	State    grid.State

	LogText  string
	ShowLogs bool

	Width  int
	Height int
}

func newUIState() uiState {
	search := textinput.New()
	search.Placeholder = "tag:... path:... filetype:... or free text"
	search.CharLimit = searchCharLimit
	search.Width = defaultSearchWidth

	pager := paginator.New()
	pager.Type = paginator.Dots
	pager.ActiveDot = "•"
	pager.InactiveDot = "·"

	logView := viewport.New(defaultWindowWidth, defaultLogHeight)

	return uiState{
		Search:   search,
		Pager:    pager,
		LogView:  logView,
		Title:    "tagdeck",
		Status:   "No library open",
		ShowLogs: false,
		Width:    defaultWindowWidth,
		Height:   defaultWindowHeight,
	}
}

// syncGrid pulls a fresh projection of the grid controller.
func (s *uiState) syncGrid(g *grid.Controller) {
	s.Slots = g.Slots()
	s.Pages = g.Pages()
	s.Total = g.TotalCount()
	s.Selected = len(g.Selected())
	s.State = g.State()

	if s.Pages > 0 {
		s.Pager.SetTotalPages(s.Pages)
		s.Pager.Page = g.Page()
	} else {
		s.Pager.SetTotalPages(1)
		s.Pager.Page = 0
	}
}

func (s *uiState) appendLog(line string) {
	if line == "" {
		return
	}
	s.LogText += line + "\n"
	if len(s.LogText) > headlessLogLimit {
		s.LogText = s.LogText[len(s.LogText)-headlessLogLimit:]
	}
	s.LogView.SetContent(s.LogText)
	s.LogView.GotoBottom()
}
