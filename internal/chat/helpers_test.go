package chat

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// testClient is the far end of a chat connection, read by its own goroutine.
type testClient struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
	done  chan struct{} // closed when the serving session returns, if known
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	t.Helper()
	c := &testClient{
		t:     t,
		conn:  conn,
		lines: make(chan string, 2048),
	}
	go func() {
		defer close(c.lines)
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			c.lines <- strings.TrimRight(line, "\r\n")
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

// pipeSession runs a Session on one end of net.Pipe and returns the other.
func pipeSession(t *testing.T, reg *Registry) *testClient {
	t.Helper()
	server, client := net.Pipe()
	sess := NewSession(server, reg, DefaultOutboxLimit, nil)

	done := make(chan struct{})
	// Registered before the client's close, so it runs after it.
	t.Cleanup(func() {
		select {
		case <-done:
		case <-time.After(waitTimeout):
			t.Errorf("session did not finish after the client closed")
		}
	})

	c := newTestClient(t, client)
	c.done = done
	go func() {
		defer close(done)
		sess.Run()
	}()
	return c
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, line+"\n")
	require.NoError(c.t, err)
}

func (c *testClient) next() string {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		if !ok {
			c.t.Fatalf("connection closed while waiting for a line")
		}
		return line
	case <-time.After(waitTimeout):
		c.t.Fatalf("timeout waiting for a line")
	}
	return ""
}

func (c *testClient) expect(want ...string) {
	c.t.Helper()
	for _, w := range want {
		require.Equal(c.t, w, c.next())
	}
}

// waitFor skips lines until want arrives.
func (c *testClient) waitFor(want string) {
	c.t.Helper()
	for {
		if c.next() == want {
			return
		}
	}
}

func (c *testClient) expectSilence() {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		if ok {
			c.t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case _, ok := <-c.lines:
			if !ok {
				return
			}
		case <-deadline:
			c.t.Fatalf("timeout waiting for the connection to close")
		}
	}
}

func (c *testClient) waitSession() {
	c.t.Helper()
	select {
	case <-c.done:
	case <-time.After(waitTimeout):
		c.t.Fatalf("session did not finish")
	}
}

// drain returns everything currently queued on out.
func drain(out *Outbox) []string {
	return out.pending()
}
