// Package ui implements the party watch terminal interface using bubbletea's Elm architecture.
//
// A [Client] holds the party WebSocket and exposes decoded [Frame] values. The (view) [Model]
// folds those frames into a local copy of the party: header, now playing with a progress bar,
// the upcoming queue, and the last few chat lines.
//
// Between playback frames the position is extrapolated locally from the last sync, the same way
// the server does, so the bar keeps moving without traffic. Pressing s asks the server for a fresh
// snapshot; space and n send play/pause and next, which the server only accepts from the host.
//
// Keyboard navigation uses vim-style bindings (j/k, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
