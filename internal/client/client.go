// Package client is a line-mode terminal client for the chat server. It only
// presents what the server sends; all chat semantics live on the server.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gookit/color"

	"github.com/andy6609/relaychat/internal/protocol"
)

const usage = "Type a message and press enter. /w <name> <text> whispers, /who lists users, /quit leaves."

type Client struct {
	conn net.Conn

	mu     sync.Mutex
	out    io.Writer
	roster []string
}

func New(conn net.Conn, out io.Writer) *Client {
	return &Client{conn: conn, out: out}
}

// Run forwards input lines to the server and renders server lines until the
// server hangs up or input ends.
func (c *Client) Run(in io.Reader) error {
	recvDone := make(chan error, 1)
	go func() { recvDone <- c.receive() }()

	sendDone := make(chan error, 1)
	go func() { sendDone <- c.forward(in) }()

	select {
	case err := <-recvDone:
		c.println(color.Yellow.Sprint("Disconnected."))
		return err
	case err := <-sendDone:
		_ = c.conn.Close()
		<-recvDone
		return err
	}
}

// Roster returns the last CLIENTLIST received.
func (c *Client) Roster() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.roster...)
}

func (c *Client) receive() error {
	sc := bufio.NewScanner(c.conn)
	for sc.Scan() {
		c.render(protocol.Decode(sc.Text()))
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("receive: %w", err)
	}
	return nil
}

func (c *Client) render(f protocol.Frame) {
	switch f.Type {
	case protocol.FrameSubmitName:
		c.println(color.Cyan.Sprint("Choose a screen name:"))
	case protocol.FrameNameAccepted:
		c.println(color.Green.Sprint("Name accepted. ") + usage)
	case protocol.FrameMessage:
		switch {
		case protocol.IsWhisper(f.Text):
			c.println(color.Magenta.Sprint(f.Text))
		case isNotice(f.Text):
			c.println(color.Yellow.Sprint(f.Text))
		default:
			c.println(f.Text)
		}
	case protocol.FrameClientList:
		c.mu.Lock()
		c.roster = f.Names
		c.mu.Unlock()
	}
}

func (c *Client) forward(in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line, ok := translate(sc.Text())
		if !ok {
			switch strings.TrimSpace(sc.Text()) {
			case "/quit":
				return nil
			case "/who":
				c.println(color.Cyan.Sprint("Online: " + strings.Join(c.Roster(), ", ")))
			default:
				c.println(color.Yellow.Sprint("usage: /w <name> <text>"))
			}
			continue
		}
		if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return sc.Err()
}

// translate maps an input line to the line sent to the server. ok is false
// for client-side commands and malformed /w.
func translate(input string) (line string, ok bool) {
	trimmed := strings.TrimSpace(input)
	switch {
	case trimmed == "/quit", trimmed == "/who":
		return "", false
	case strings.HasPrefix(trimmed, "/w "):
		fields := strings.SplitN(strings.TrimSpace(trimmed[len("/w "):]), " ", 2)
		if len(fields) != 2 || strings.TrimSpace(fields[1]) == "" {
			return "", false
		}
		return protocol.EncodeWhisper(fields[0], strings.TrimSpace(fields[1])), true
	default:
		return input, true
	}
}

func isNotice(text string) bool {
	return !strings.Contains(text, ": ") && strings.HasSuffix(text, " the chatroom.")
}

func (c *Client) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}
