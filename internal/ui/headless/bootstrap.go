package headless

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"tagdeck/internal/app"
	"tagdeck/internal/config"
	"tagdeck/internal/grid"
	"tagdeck/internal/logging"
	"tagdeck/internal/runctx"
)

const (
	logChannelBufferSize    = 512
	statusChannelBufferSize = 16
	titleChannelBufferSize  = 4
	updateTickInterval      = 120 * time.Millisecond
	runErrorExitCode        = 1
)

// Run starts the terminal front-end and blocks until it exits.
func Run(rootCtx context.Context, buildVersion string, opts config.Options) {
	defer forceDisableMouseTracking()

	settings := config.DefaultSettings()
	if saved, loadErr := config.LoadSettings(opts.SettingsFile); loadErr == nil {
		settings = saved
		opts = config.MergeOptionsWithSettings(opts, saved)
	}

	logger := logging.New(false)
	logger.SetDebugEnabled(opts.Debug || settings.Debug)
	if err := logger.EnableFilePersistence(0); err != nil {
		logger.Warn("failed to enable file log persistence", logging.Field("error", err))
	}
	logger.SetTerminalOutputEnabled(false)
	logger.Info("starting tagdeck TUI", logging.Field("version", buildVersion))

	m := newHeadlessModel(rootCtx, buildVersion, opts, settings, logger)
	zone.NewGlobal()
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
	m.program = program
	result, runErr := program.Run()
	model, _ := result.(*headlessModel)
	if model != nil {
		model.cleanup()
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(runErrorExitCode)
	}
}

func forceDisableMouseTracking() {
	_, _ = os.Stdout.WriteString("\x1b[?1000l\x1b[?1002l\x1b[?1003l\x1b[?1006l\x1b[?1015l")
}

func newHeadlessModel(rootCtx context.Context, buildVersion string, opts config.Options, settings config.Settings, logger *logging.Logger) *headlessModel {
	if rootCtx == nil {
		rootCtx = context.Background()
	}
	runCtx, runCancel := context.WithCancel(rootCtx)

	m := &headlessModel{
		buildVersion: buildVersion,
		modelDeps: modelDeps{
			opts:       opts,
			logger:     logger,
			rootCtx:    runCtx,
			rootCancel: runCancel,
		},
		modelChannels: modelChannels{
			logCh:    make(chan string, logChannelBufferSize),
			statusCh: make(chan string, statusChannelBufferSize),
			titleCh:  make(chan string, titleChannelBufferSize),
			gridCh:   make(chan struct{}, 1),
		},
		ui: newUIState(),
	}

	gridHooks := grid.Hooks{
		OnWindowRefresh:   func(int, int, int) { m.signalGridChange() },
		OnSlotUpdate:      func(grid.Slot) { m.signalGridChange() },
		OnSelectionChange: func(int) { m.signalGridChange() },
		OnStateChange:     func(grid.State) { m.signalGridChange() },
	}
	appHooks := app.Callbacks{
		OnStatus: func(msg string) { m.postDropOldest(m.statusCh, msg) },
		OnTitle:  func(title string) { m.postDropOldest(m.titleCh, title) },
	}
	m.app = app.New(runCtx, opts, settings, logger, gridHooks, appHooks)

	m.unsubscribe = logger.Subscribe(func(event logging.Event) {
		m.postDropOldest(m.logCh, logging.FormatEventANSI(event))
	})

	return m
}

// signalGridChange coalesces any number of controller notifications into a
// single pending refresh.
func (m *headlessModel) signalGridChange() {
	select {
	case m.gridCh <- struct{}{}:
	default:
	}
}

// postDropOldest delivers value without ever blocking a producer: when the
// buffer is full the oldest queued item is discarded first.
func (m *headlessModel) postDropOldest(ch chan string, value string) {
	select {
	case ch <- value:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- value
	}
}

func (m *headlessModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.waitForLog(),
		m.waitForStatus(),
		m.waitForTitle(),
		m.waitForGrid(),
		tickCmd(),
	}
	if m.app.Settings().OpenLastOnStart || m.openTarget() != "" {
		cmds = append(cmds, m.openStartLibraryCmd())
	}
	return tea.Batch(cmds...)
}

func (m *headlessModel) openTarget() string {
	return m.opts.Library
}

func (m *headlessModel) openStartLibraryCmd() tea.Cmd {
	return func() tea.Msg {
		if target := m.openTarget(); target != "" {
			return openDoneMsg{err: m.app.OpenLibrary(target)}
		}
		_, err := m.app.OpenLastLibrary()
		return openDoneMsg{err: err}
	}
}

func (m *headlessModel) waitForLog() tea.Cmd {
	return func() tea.Msg {
		line, ok := runctx.RecvOrDone(m.rootCtx, "headless log feed", m.logger, m.logCh)
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

func (m *headlessModel) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		status, ok := runctx.RecvOrDone(m.rootCtx, "headless status feed", m.logger, m.statusCh)
		if !ok {
			return nil
		}
		return statusMsg(status)
	}
}

func (m *headlessModel) waitForTitle() tea.Cmd {
	return func() tea.Msg {
		title, ok := runctx.RecvOrDone(m.rootCtx, "headless title feed", m.logger, m.titleCh)
		if !ok {
			return nil
		}
		return titleMsg(title)
	}
}

func (m *headlessModel) waitForGrid() tea.Cmd {
	return func() tea.Msg {
		_, ok := runctx.RecvOrDone(m.rootCtx, "headless grid feed", m.logger, m.gridCh)
		if !ok {
			return nil
		}
		return gridChangedMsg{}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(updateTickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *headlessModel) cleanup() {
	m.cleanupOnce.Do(func() {
		m.logger.Debug("headless cleanup started")
		if m.rootCancel != nil {
			m.rootCancel()
		}
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		m.app.Shutdown()
		m.logger.Debug("headless cleanup complete")
	})
}
