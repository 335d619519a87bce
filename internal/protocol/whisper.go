package protocol

import "strings"

const (
	whisperOpen      = "<"
	whisperDelimiter = "/>"
)

// ParseWhisper reports whether line is a whisper of the form <target/>message
// and splits it. Lines that start like a whisper but have no delimiter or an
// empty target are not whispers; callers treat them as public messages.
func ParseWhisper(line string) (target, text string, ok bool) {
	if !strings.HasPrefix(line, whisperOpen) {
		return "", "", false
	}
	idx := strings.Index(line, whisperDelimiter)
	if idx < 0 {
		return "", "", false
	}

	head := line[len(whisperOpen):idx]
	if end := strings.IndexByte(head, '>'); end >= 0 {
		head = head[:end]
	}
	target = strings.TrimSpace(strings.ReplaceAll(head, whisperOpen, ""))
	if target == "" {
		return "", "", false
	}

	text = strings.TrimSpace(line[idx+len(whisperDelimiter):])
	// Only surrounding '>' are stripped; ones inside the message stay.
	text = strings.TrimSpace(strings.Trim(text, ">"))
	return target, text, true
}

// EncodeWhisper builds the client-side line that whispers text to target.
func EncodeWhisper(target, text string) string {
	return whisperOpen + target + whisperDelimiter + text
}
