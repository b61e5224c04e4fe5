package headless

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"tagdeck/internal/app"
	"tagdeck/internal/config"
	"tagdeck/internal/logging"
)

const headlessLogLimit = 100_000

type logMsg string
type statusMsg string
type titleMsg string
type gridChangedMsg struct{}
type openDoneMsg struct {
	err error
}
type tickMsg struct{}

type modelDeps struct {
	app         *app.App
	opts        config.Options
	logger      *logging.Logger
	unsubscribe func()
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	program     *tea.Program
}

type modelChannels struct {
	logCh    chan string
	statusCh chan string
	titleCh  chan string
	gridCh   chan struct{}
}

type headlessModel struct {
	buildVersion string
	modelDeps
	modelChannels
	cleanupOnce sync.Once
	ui          uiState
}
