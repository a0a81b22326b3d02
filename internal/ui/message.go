package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgFrame MsgKind = iota
	MsgClosed
	MsgTick
	MsgPing
	MsgSendFailed
)

// frameMsg is the constructor for [MsgFrame]
func frameMsg(f Frame) Msg {
	return Msg{kind: MsgFrame, data: f}
}

// closedMsg is the constructor for [MsgClosed]
func closedMsg(err error) Msg {
	return Msg{kind: MsgClosed, data: err}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// pingMsg is the constructor for [MsgPing]
func pingMsg(t time.Time) Msg {
	return Msg{kind: MsgPing, data: t}
}

// sendFailedMsg is the constructor for [MsgSendFailed]
func sendFailedMsg(err error) Msg {
	return Msg{kind: MsgSendFailed, data: err}
}
