// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for managed playlist syncs:
//  1. [UserListView] : Browse registered listeners
//  2. [ConfirmView] : Confirm a single sync or a full sweep
//  3. [SyncView] : Monitor real-time cycle progress
//  4. [ResultView] : Display cycle or sweep outcomes
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the sync engine, providing non-blocking status reporting during cycles.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
