package grid

import (
	"image"
	"path/filepath"
	"sync"

	"tagdeck/internal/library"
	"tagdeck/internal/logging"
	"tagdeck/internal/render"
)

// State is the controller's lifecycle state.
type State int

const (
	// StateEmpty means no library is attached.
	StateEmpty State = iota
	// StateIdle means results are displayed and no render jobs are pending.
	StateIdle
	// StateLoading means render jobs for the current window are outstanding.
	StateLoading
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Searcher is the library surface the controller consumes: a synchronous
// search over the current filter plus the root directory for resolving
// entry paths.
type Searcher interface {
	Search(filter library.FilterState) library.SearchResult
	Dir() string
}

// Hooks are optional callbacks the owning layer registers to mirror
// controller state into its presentation. All fields may be nil. They are
// invoked with the controller lock held, so they must not call back in.
type Hooks struct {
	OnStateChange     func(State)
	OnWindowRefresh   func(page, pages, total int)
	OnSlotUpdate      func(Slot)
	OnSelectionChange func(count int)
}

// Slot is a snapshot of one grid cell: the entry occupying it, the last
// committed thumbnail, and the badge/selection projection.
type Slot struct {
	Index       int
	Entry       *library.Entry
	Image       image.Image
	Placeholder bool
	Failed      bool
	Archived    bool
	Favorite    bool
	Selected    bool
}

// Controller maps a filtered result set onto a fixed window of grid slots
// and keeps thumbnails, badges, and selection consistent with it.
type Controller struct {
	logger *logging.Logger
	queue  *render.Queue
	thumb  *render.Thumbnailer
	hooks  Hooks

	mu             sync.Mutex
	state          State
	searcher       Searcher
	filter         library.FilterState
	entries        []*library.Entry
	images         []image.Image
	placeholders   []bool
	failures       []bool
	totalCount     int
	selected       selection
	thumbSizeIndex int
	pixelRatio     float64
	pendingRenders int
}

func NewController(logger *logging.Logger, queue *render.Queue, hooks Hooks) *Controller {
	if logger == nil {
		panic("grid.NewController: logger must not be nil")
	}
	if queue == nil {
		panic("grid.NewController: queue must not be nil")
	}
	c := &Controller{
		logger:         logger,
		queue:          queue,
		hooks:          hooks,
		state:          StateEmpty,
		selected:       selection{},
		thumbSizeIndex: DefaultThumbSizeIndex,
		pixelRatio:     1,
	}
	c.thumb = render.NewThumbnailer(logger, queue, c.applySlotUpdate)
	return c
}

// Attach binds an opened library and shows its first page.
func (c *Controller) Attach(searcher Searcher, pageSize int) {
	if searcher == nil {
		panic("grid.Controller.Attach: searcher must not be nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searcher = searcher
	c.filter = library.ShowAll().WithPageSize(pageSize)
	c.selected = selection{}
	c.refreshLocked(true)
}

// Detach clears all grid state and cancels outstanding renders.
func (c *Controller) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.CancelAll()
	c.searcher = nil
	c.filter = library.FilterState{}
	c.entries = nil
	c.images = nil
	c.placeholders = nil
	c.failures = nil
	c.totalCount = 0
	c.selected = selection{}
	c.pendingRenders = 0
	c.setStateLocked(StateEmpty)
	if c.hooks.OnSelectionChange != nil {
		c.hooks.OnSelectionChange(0)
	}
}

// SetQuery replaces the filter with a new search and resets to page zero.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.searcher == nil {
		return
	}
	c.filter = c.filter.WithQuery(query)
	c.selected = selection{}
	c.refreshLocked(true)
}

// MovePage navigates by a page delta; the target is clamped into range.
func (c *Controller) MovePage(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.searcher == nil {
		return
	}
	c.setPageLocked(c.filter.PageIndex + delta)
}

// SetPage navigates to an absolute page index, clamped into range.
func (c *Controller) SetPage(pageIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.searcher == nil {
		return
	}
	c.setPageLocked(pageIndex)
}

func (c *Controller) setPageLocked(pageIndex int) {
	target := clampPage(pageIndex, pageCount(c.totalCount, c.filter.PageSize))
	if target == c.filter.PageIndex {
		return
	}
	c.filter = c.filter.WithPage(target)
	c.selected = selection{}
	c.refreshLocked(true)
}

// Refresh re-runs the current filter, for example after entries or tags
// changed underneath the grid.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.searcher == nil {
		return
	}
	c.refreshLocked(false)
}

// SetThumbSizeIndex switches the thumbnail size preset and re-renders the
// current window without touching filter, page, or selection.
func (c *Controller) SetThumbSizeIndex(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thumbSizeIndex = index
	if c.searcher == nil {
		return
	}
	c.submitWindowLocked()
}

// SetPixelRatio sets the display scaling factor applied to render sizes.
func (c *Controller) SetPixelRatio(ratio float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ratio > 0 {
		c.pixelRatio = ratio
	}
}

// Click applies one selection gesture to a populated slot. Clicks outside
// the populated window are ignored.
func (c *Controller) Click(index int, mode ClickMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.entries) {
		return
	}
	c.selected = c.selected.apply(index, mode)
	if c.hooks.OnSelectionChange != nil {
		c.hooks.OnSelectionChange(len(c.selected))
	}
}

// SelectAll selects every populated slot.
func (c *Controller) SelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make(selection, len(c.entries))
	for i := range c.entries {
		next[i] = struct{}{}
	}
	c.selected = next
	if c.hooks.OnSelectionChange != nil {
		c.hooks.OnSelectionChange(len(c.selected))
	}
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = selection{}
	if c.hooks.OnSelectionChange != nil {
		c.hooks.OnSelectionChange(0)
	}
}

// Selected returns the selected slot indices in ascending order.
func (c *Controller) Selected() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected.indices()
}

// SelectedEntries returns the entries occupying the selected slots.
func (c *Controller) SelectedEntries() []*library.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*library.Entry, 0, len(c.selected))
	for _, i := range c.selected.indices() {
		if i < len(c.entries) {
			out = append(out, c.entries[i])
		}
	}
	return out
}

// Slots returns a snapshot of the visible window. Badges are recomputed
// from each entry's current tag set on every call.
func (c *Controller) Slots() []Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Slot, len(c.entries))
	for i := range c.entries {
		out[i] = c.slotLocked(i)
	}
	return out
}

func (c *Controller) slotLocked(i int) Slot {
	entry := c.entries[i]
	return Slot{
		Index:       i,
		Entry:       entry,
		Image:       c.images[i],
		Placeholder: c.placeholders[i],
		Failed:      c.failures[i],
		Archived:    entry.HasTag(library.TagIDArchived),
		Favorite:    entry.HasTag(library.TagIDFavorite),
		Selected:    c.selected.contains(i),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.PageIndex
}

func (c *Controller) Pages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pageCount(c.totalCount, c.filter.PageSize)
}

func (c *Controller) TotalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalCount
}

func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.Query
}

func (c *Controller) ThumbSizeIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thumbSizeIndex
}

// refreshLocked re-runs the current filter, clamps the page against the
// fresh total, repopulates the slot window, and submits render jobs.
func (c *Controller) refreshLocked(resetSelection bool) {
	result := c.searcher.Search(c.filter)
	pages := pageCount(result.TotalCount, c.filter.PageSize)
	if clamped := clampPage(c.filter.PageIndex, pages); clamped != c.filter.PageIndex {
		c.filter = c.filter.WithPage(clamped)
		result = c.searcher.Search(c.filter)
	}

	c.entries = result.Entries
	c.totalCount = result.TotalCount
	c.images = make([]image.Image, len(c.entries))
	c.placeholders = make([]bool, len(c.entries))
	c.failures = make([]bool, len(c.entries))
	if resetSelection {
		c.selected = selection{}
		if c.hooks.OnSelectionChange != nil {
			c.hooks.OnSelectionChange(0)
		}
	}

	if c.hooks.OnWindowRefresh != nil {
		c.hooks.OnWindowRefresh(c.filter.PageIndex, pages, c.totalCount)
	}
	c.submitWindowLocked()
}

// submitWindowLocked cancels stale jobs and submits the two render passes:
// placeholder jobs for every populated slot first, then the content jobs.
func (c *Controller) submitWindowLocked() {
	c.queue.CancelAll()
	if len(c.entries) == 0 {
		c.pendingRenders = 0
		c.setStateLocked(StateIdle)
		return
	}

	size := c.thumbPixelsLocked()
	for i := range c.entries {
		c.queue.Submit(render.Job{
			Render: c.thumb.SlotRender(i),
			Args: render.Args{
				Timestamp:   render.PlaceholderTimestamp,
				BaseSize:    size,
				PixelRatio:  c.pixelRatio,
				Placeholder: true,
				GridContext: true,
			},
		})
	}
	dir := c.searcher.Dir()
	for i, entry := range c.entries {
		c.queue.Submit(render.Job{
			Render: c.thumb.SlotRender(i),
			Args: render.Args{
				Timestamp:   c.queue.Now(),
				Path:        filepath.Join(dir, filepath.FromSlash(entry.Path)),
				BaseSize:    size,
				PixelRatio:  c.pixelRatio,
				GridContext: true,
			},
		})
	}
	c.pendingRenders = len(c.entries)
	c.setStateLocked(StateLoading)
}

// applySlotUpdate is the thumbnailer's commit callback; it runs on render
// workers after the cutoff gate has already passed.
func (c *Controller) applySlotUpdate(update render.SlotUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if update.Slot < 0 || update.Slot >= len(c.entries) {
		return
	}
	c.images[update.Slot] = update.Image
	c.placeholders[update.Slot] = update.Placeholder
	c.failures[update.Slot] = update.Failed
	if c.hooks.OnSlotUpdate != nil {
		c.hooks.OnSlotUpdate(c.slotLocked(update.Slot))
	}
	if !update.Placeholder && c.pendingRenders > 0 {
		c.pendingRenders--
		if c.pendingRenders == 0 {
			c.setStateLocked(StateIdle)
		}
	}
}

func (c *Controller) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.state = next
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(next)
	}
}

func (c *Controller) thumbPixelsLocked() int {
	if c.thumbSizeIndex < 0 || c.thumbSizeIndex >= len(ThumbSizes) {
		c.logger.Warn("thumbnail size index out of range, using fallback",
			logging.Field("index", c.thumbSizeIndex),
			logging.Field("fallback_px", fallbackThumbPixels),
		)
		return fallbackThumbPixels
	}
	return ThumbSizes[c.thumbSizeIndex].Pixels
}

func pageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func clampPage(pageIndex, pages int) int {
	if pageIndex < 0 {
		return 0
	}
	if pages == 0 {
		return 0
	}
	if pageIndex > pages-1 {
		return pages - 1
	}
	return pageIndex
}
