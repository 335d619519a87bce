package protocol

import "strings"

type FrameType int

const (
	FrameUnknown FrameType = iota
	FrameSubmitName
	FrameNameAccepted
	FrameMessage
	FrameClientList
)

// Frame is a decoded server to client line.
type Frame struct {
	Type  FrameType
	Text  string   // FrameMessage
	Names []string // FrameClientList
	Raw   string
}

// Decode classifies a server line by its leading keyword.
func Decode(line string) Frame {
	line = strings.TrimRight(line, "\r\n")
	f := Frame{Raw: line}

	switch {
	case strings.HasPrefix(line, SubmitName):
		f.Type = FrameSubmitName
	case strings.HasPrefix(line, NameAccepted):
		f.Type = FrameNameAccepted
	case strings.HasPrefix(line, Message):
		f.Type = FrameMessage
		f.Text = strings.TrimPrefix(strings.TrimPrefix(line, Message), " ")
	case strings.HasPrefix(line, ClientList):
		f.Type = FrameClientList
		rest := strings.TrimPrefix(line, ClientList)
		rest = strings.TrimPrefix(rest, RosterSeparator)
		if rest != "" {
			f.Names = strings.Split(rest, RosterSeparator)
		}
	}
	return f
}

// IsWhisper reports whether a MESSAGE text carries a whisper tag.
func IsWhisper(text string) bool {
	return strings.HasPrefix(text, "<Whisper> ")
}
