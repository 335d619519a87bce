// Package protocol encodes and decodes the newline-terminated line vocabulary
// spoken between the chat server and its clients.
//
// Server to client:
//
//	SUBMITNAME
//	NAMEACCEPTED
//	MESSAGE <text>
//	CLIENTLIST,<name1>,<name2>,...
//
// Client to server, any line is either a proposed name (before NAMEACCEPTED),
// a whisper of the form <target/>message, or a public message.
package protocol

import "strings"

const (
	SubmitName   = "SUBMITNAME"
	NameAccepted = "NAMEACCEPTED"
	Message      = "MESSAGE"
	ClientList   = "CLIENTLIST"

	// RosterSeparator joins names in a CLIENTLIST line.
	RosterSeparator = ","
)

type Kind int

const (
	KindBroadcast Kind = iota
	KindWhisper
	KindSystemNotice
)

func (k Kind) String() string {
	switch k {
	case KindBroadcast:
		return "broadcast"
	case KindWhisper:
		return "whisper"
	case KindSystemNotice:
		return "system"
	default:
		return "unknown"
	}
}

// Envelope is a transient chat message before it is rendered to a line.
type Envelope struct {
	Kind   Kind
	Sender string
	Target string // whisper only
	Text   string
}

// Encode renders the envelope as seen by its recipient.
// For whispers that is the target; use EncodeWhisperEcho for the sender's copy.
func (e Envelope) Encode() string {
	switch e.Kind {
	case KindWhisper:
		return EncodeMessage("<Whisper> " + e.Sender + ": " + e.Text)
	case KindSystemNotice:
		return EncodeMessage(e.Text)
	default:
		return EncodeMessage(e.Sender + ": " + e.Text)
	}
}

// EncodeWhisperEcho renders the confirmation a whisper sender gets back.
func (e Envelope) EncodeWhisperEcho() string {
	return EncodeMessage("<Whisper> " + e.Sender + " to " + e.Target + ": " + e.Text)
}

func EncodeMessage(text string) string {
	return Message + " " + text
}

func EncodeClientList(names []string) string {
	if len(names) == 0 {
		return ClientList
	}
	return ClientList + RosterSeparator + strings.Join(names, RosterSeparator)
}

func JoinNotice(name string) Envelope {
	return Envelope{Kind: KindSystemNotice, Sender: name, Text: name + " has entered the chatroom."}
}

func LeaveNotice(name string) Envelope {
	return Envelope{Kind: KindSystemNotice, Sender: name, Text: name + " has left the chatroom."}
}
