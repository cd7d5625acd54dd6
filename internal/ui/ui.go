package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/replay/internal/models"
	"github.com/desertthunder/replay/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	UserListView ViewState = iota
	ConfirmView
	SyncView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	users  tasks.UserStore
	engine tasks.SyncEngine
	width  int
	height int

	userList     list.Model
	selectedUser *models.User
	sweepAll     bool

	progressChan chan tasks.ProgressUpdate
	doneChan     chan tea.Msg
	progress     tasks.ProgressUpdate

	result *tasks.SyncResult
	report *tasks.SweepReport
	err    error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, users tasks.UserStore, engine tasks.SyncEngine) *Model {
	return &Model{
		ctx:    ctx,
		view:   UserListView,
		users:  users,
		engine: engine,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init initializes the TUI by loading the registered user roster.
func (m *Model) Init() tea.Cmd {
	return m.loadUsers()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.userList.Width() == 0 {
			m.userList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case UserListView:
			return m.handleUserListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case usersLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(msg.users))
		for i, user := range msg.users {
			items[i] = userItem{user: user}
		}
		m.userList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.userList.Title = "Registered Listeners"
		m.userList.SetSize(m.width-4, m.height-8)
		return m, nil

	case progressMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case syncDoneMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil

	case sweepDoneMsg:
		m.report = msg.report
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	if m.view == UserListView {
		var cmd tea.Cmd
		m.userList, cmd = m.userList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case UserListView:
		return m.renderUserList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleUserListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "a":
		m.sweepAll = true
		m.view = ConfirmView
		return m, nil
	case "enter":
		selected := m.userList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(userItem); ok {
				m.selectedUser = item.user
				m.sweepAll = false
				m.view = ConfirmView
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.userList, cmd = m.userList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = UserListView
		return m, nil
	case "y":
		m.view = SyncView
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = UserListView
		m.selectedUser = nil
		m.result = nil
		m.report = nil
		m.err = nil
		return m, m.loadUsers()
	}
	return m, nil
}

func (m *Model) loadUsers() tea.Cmd {
	return func() tea.Msg {
		users, err := m.users.List(nil)
		return usersLoadedMsg{users: users, err: err}
	}
}

// startSync launches the selected cycle (or sweep) in a goroutine and begins
// draining its progress channel.
func (m *Model) startSync() tea.Cmd {
	progressChan := make(chan tasks.ProgressUpdate, 50)
	m.progressChan = progressChan

	done := make(chan tea.Msg, 1)
	if m.sweepAll {
		go func() {
			report, err := m.engine.SyncAll(m.ctx, progressChan)
			done <- sweepDoneMsg{report: report, err: err}
			close(progressChan)
		}()
	} else {
		user := m.selectedUser
		go func() {
			result, err := m.engine.ReconcileUser(m.ctx, progressChan, user.ID())
			done <- syncDoneMsg{result: result, err: err}
			close(progressChan)
		}()
	}
	m.doneChan = done

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan := m.progressChan
	done := m.doneChan

	return func() tea.Msg {
		if progressChan == nil {
			return <-done
		}

		update, ok := <-progressChan
		if !ok {
			return <-done
		}
		return progressMsg(update)
	}
}

func (m *Model) renderUserList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.all, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.userList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	var title string
	if m.sweepAll {
		title = styles.title.Render("Sync every registered listener now?")
	} else {
		title = styles.title.Render(fmt.Sprintf("Sync playlist for '%s' now?", m.selectedUser.SpotifyID()))
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n\n%s", title, helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing")

	var phase string
	switch m.progress.Phase {
	case tasks.EnsurePlaylist:
		phase = "Ensuring managed playlist..."
	case tasks.FetchPlaylist:
		phase = "Fetching playlist state..."
	case tasks.FetchHistory:
		phase = "Fetching listening history..."
	case tasks.ComputePlan:
		phase = "Planning changes..."
	case tasks.ExecuteRemovals:
		phase = "Removing tracks..."
	case tasks.ExecuteInsertions:
		phase = "Inserting tracks..."
	case tasks.SyncUser:
		phase = fmt.Sprintf("Syncing users (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Working..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v\n\nPress r to go back, q to quit", m.err))
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.report != nil {
		title := styles.ok.Render("✓ Sweep Complete")
		info := fmt.Sprintf("\n%d users: %d synced, %d skipped, %d failed",
			m.report.TotalUsers, m.report.Succeeded, m.report.Skipped, m.report.Failed)

		var failures string
		for _, result := range m.report.Results {
			if result.Status == models.SyncStatusFailed || result.Status == models.SyncStatusReauthNeeded {
				failures += fmt.Sprintf("\n  • %s: %s", result.SpotifyID, result.Message)
			}
		}
		if failures != "" {
			failures = "\n" + styles.warn.Render("Failures:") + failures
		}

		return fmt.Sprintf("%s%s%s\n\n%s", title, info, failures, helpView)
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to go back, q to quit")
	}

	title := styles.ok.Render("✓ Sync Complete")
	info := fmt.Sprintf("\nUser: %s\nStatus: %s\nAdded: %d\nRemoved: %d",
		m.result.SpotifyID, m.result.Status, m.result.Added, m.result.Removed)

	var rejected string
	if len(m.result.Rejected) > 0 {
		rejected = "\n" + styles.warn.Render(fmt.Sprintf("Rejected %d tracks:", len(m.result.Rejected)))
		for _, id := range m.result.Rejected {
			rejected += fmt.Sprintf("\n  • %s", id)
		}
	}

	return fmt.Sprintf("%s%s%s\n\n%s", title, info, rejected, helpView)
}
