package chat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andy6609/relaychat/internal/protocol"
)

// flushTimeout bounds how long a closing session waits for queued lines.
const flushTimeout = time.Second

// Session drives one connection through name negotiation and then relays its
// lines through the Registry until the connection ends. It owns conn and its
// outbox; the Registry is shared.
type Session struct {
	id     string
	conn   net.Conn
	reg    *Registry
	out    *Outbox
	logger *slog.Logger

	name  string
	state State
}

func NewSession(conn net.Conn, reg *Registry, outboxLimit int, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	logger = logger.With("session", id, "remote", conn.RemoteAddr().String())

	out := NewOutbox(outboxLimit)
	// Runs on the sender's goroutine. Closing conn ends this session's read,
	// which then runs the usual cleanup.
	out.OnOverflow(func() {
		logger.Warn("outbox limit exceeded, disconnecting", "limit", outboxLimit)
		_ = conn.Close()
	})

	return &Session{
		id:     id,
		conn:   conn,
		reg:    reg,
		out:    out,
		logger: logger,
		state:  StateAwaitingName,
	}
}

// Run blocks until the connection ends. Cleanup runs on every exit path.
func (s *Session) Run() {
	writerDone := StartOutboundWriter(s.conn, s.out)
	defer s.close(writerDone)

	reader := bufio.NewReader(s.conn)
	if !s.negotiate(reader) {
		return
	}
	s.relay(reader)
}

func (s *Session) negotiate(reader *bufio.Reader) bool {
	for {
		s.out.Send(protocol.SubmitName)
		line, err := readLine(reader)
		if err != nil {
			s.logReadErr(err)
			return false
		}

		name, err := s.reg.Register(line, s.out)
		if err != nil {
			NameRejections.WithLabelValues(err.Error()).Inc()
			s.logger.Debug("name rejected", "proposed", line, "reason", err)
			continue
		}

		s.name = name
		s.state = StateActive
		s.logger = s.logger.With("name", name)
		s.logger.Info("user registered")

		s.reg.Publish(protocol.JoinNotice(name))
		s.reg.BroadcastRoster()
		return true
	}
}

func (s *Session) relay(reader *bufio.Reader) {
	for {
		line, err := readLine(reader)
		if err != nil {
			s.logReadErr(err)
			return
		}
		s.handleLine(line)
	}
}

func (s *Session) handleLine(line string) {
	if target, text, ok := protocol.ParseWhisper(line); ok {
		s.reg.Whisper(protocol.Envelope{
			Kind:   protocol.KindWhisper,
			Sender: s.name,
			Target: target,
			Text:   text,
		})
		return
	}
	s.reg.Publish(protocol.Envelope{
		Kind:   protocol.KindBroadcast,
		Sender: s.name,
		Text:   line,
	})
}

func (s *Session) close(writerDone <-chan struct{}) {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed

	if s.name != "" && s.reg.Deregister(s.name) {
		s.logger.Info("user left")
		s.reg.Publish(protocol.LeaveNotice(s.name))
		s.reg.BroadcastRoster()
	}

	s.out.Close()
	_ = s.conn.SetWriteDeadline(time.Now().Add(flushTimeout))
	<-writerDone
	_ = s.conn.Close()
}

func (s *Session) logReadErr(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	s.logger.Debug("read failed", "state", s.state.String(), "error", err)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err == nil {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF && line != "" {
		// last line without newline
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF {
		return "", io.EOF
	}
	return "", fmt.Errorf("read: %w", err)
}
