package chat

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andy6609/relaychat/internal/protocol"
)

func TestRegistry_RegisterRejectsDuplicateName(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)

	name, err := r.Register("alice", NewOutbox(0))
	req.NoError(err)
	req.Equal("alice", name)

	_, err = r.Register("alice", NewOutbox(0))
	req.ErrorIs(err, ErrNameTaken)
	req.False(r.TryRegister("alice", NewOutbox(0)))
	req.Equal([]string{"alice"}, r.Snapshot())
}

func TestRegistry_RegisterRejectsInvalidName(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"", "   ", "a,b"} {
		out := NewOutbox(0)
		_, err := r.Register(name, out)
		require.ErrorIs(t, err, ErrNameInvalid, "name %q", name)
		require.Empty(t, drain(out))
	}
	require.Empty(t, r.Snapshot())
}

func TestRegistry_RegisterTrimsAndQueuesAcceptance(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)
	out := NewOutbox(0)

	name, err := r.Register("  alice \r", out)
	req.NoError(err)
	req.Equal("alice", name)
	req.Equal([]string{protocol.NameAccepted}, drain(out))
}

func TestRegistry_SnapshotReflectsJoinLeave(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)

	req.True(r.TryRegister("bob", NewOutbox(0)))
	req.True(r.TryRegister("alice", NewOutbox(0)))
	req.Equal([]string{"alice", "bob"}, r.Snapshot())

	req.True(r.Deregister("bob"))
	req.Equal([]string{"alice"}, r.Snapshot())

	// Deregister is idempotent.
	req.False(r.Deregister("bob"))
	req.False(r.Deregister("nobody"))
	req.Equal(1, r.Len())
}

func TestRegistry_ConcurrentRegisterAdmitsOneWinner(t *testing.T) {
	r := NewRegistry(nil)
	const contenders = 64

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if r.TryRegister("Bob", NewOutbox(0)) {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, []string{"Bob"}, r.Snapshot())
}

func TestRegistry_BroadcastReachesOnlyRegistered(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)

	alice, bob, carol := NewOutbox(0), NewOutbox(0), NewOutbox(0)
	req.True(r.TryRegister("alice", alice))
	req.True(r.TryRegister("bob", bob))
	req.True(r.TryRegister("carol", carol))
	req.True(r.Deregister("carol"))
	drain(alice)
	drain(bob)
	drain(carol)

	req.Equal(2, r.Broadcast("MESSAGE alice: hi"))

	req.Equal([]string{"MESSAGE alice: hi"}, drain(alice))
	req.Equal([]string{"MESSAGE alice: hi"}, drain(bob))
	req.Empty(drain(carol))
}

func TestRegistry_BroadcastRoster(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)

	alice, bob := NewOutbox(0), NewOutbox(0)
	req.True(r.TryRegister("bob", bob))
	req.True(r.TryRegister("alice", alice))
	drain(alice)
	drain(bob)

	req.Equal(2, r.BroadcastRoster())
	req.Equal([]string{"CLIENTLIST,alice,bob"}, drain(alice))
	req.Equal([]string{"CLIENTLIST,alice,bob"}, drain(bob))
}

func TestRegistry_WhisperIsolation(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)

	alice, bob, carol := NewOutbox(0), NewOutbox(0), NewOutbox(0)
	req.True(r.TryRegister("Alice", alice))
	req.True(r.TryRegister("Bob", bob))
	req.True(r.TryRegister("Carol", carol))
	drain(alice)
	drain(bob)
	drain(carol)

	ok := r.Whisper(protocol.Envelope{Kind: protocol.KindWhisper, Sender: "Alice", Target: "Bob", Text: "Hi there"})
	req.True(ok)

	req.Equal([]string{"MESSAGE <Whisper> Alice: Hi there"}, drain(bob))
	req.Equal([]string{"MESSAGE <Whisper> Alice to Bob: Hi there"}, drain(alice))
	req.Empty(drain(carol))
}

func TestRegistry_WhisperDroppedWhenEitherSideMissing(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)

	alice := NewOutbox(0)
	req.True(r.TryRegister("Alice", alice))
	drain(alice)

	// Unknown target.
	req.False(r.Whisper(protocol.Envelope{Kind: protocol.KindWhisper, Sender: "Alice", Target: "Carol", Text: "Hi"}))
	req.Empty(drain(alice))

	// Unknown sender.
	req.False(r.Whisper(protocol.Envelope{Kind: protocol.KindWhisper, Sender: "Ghost", Target: "Alice", Text: "boo"}))
	req.Empty(drain(alice))
}

func TestRegistry_SendTo(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)

	bob := NewOutbox(0)
	req.True(r.TryRegister("bob", bob))
	drain(bob)

	req.True(r.SendTo("bob", "MESSAGE hello"))
	req.False(r.SendTo("nobody", "MESSAGE hello"))
	req.Equal([]string{"MESSAGE hello"}, drain(bob))
}

func TestRegistry_BurstReachesLiveOutboxInOrder(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)

	bob := NewOutbox(DefaultOutboxLimit)
	req.True(r.TryRegister("bob", bob))
	drain(bob)

	const burst = 1000
	want := make([]string, 0, burst)
	for i := 0; i < burst; i++ {
		line := fmt.Sprintf("MESSAGE alice: m%d", i)
		want = append(want, line)
		req.Equal(1, r.Broadcast(line))
	}
	req.Equal(want, drain(bob))
}

func TestRegistry_OverflowClosesOutbox(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(nil)

	var overflows atomic.Int32
	stalled := NewOutbox(2)
	stalled.OnOverflow(func() { overflows.Add(1) })
	req.True(r.TryRegister("stalled", stalled)) // NAMEACCEPTED is the first pending line

	req.Equal(1, r.Broadcast("MESSAGE a"))
	req.Equal(0, r.Broadcast("MESSAGE b"))
	req.Equal(0, r.Broadcast("MESSAGE c"))

	// The whole backlog is discarded and the callback fired once.
	req.Equal(int32(1), overflows.Load())
	req.Empty(drain(stalled))
	req.False(stalled.Send("MESSAGE d"))
}

func TestRegistry_BroadcastDuringChurn(t *testing.T) {
	r := NewRegistry(nil)
	stable := NewOutbox(0)
	require.True(t, r.TryRegister("stable", stable))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				name := fmt.Sprintf("churn-%d-%d", i, j)
				out := NewOutbox(0)
				if r.TryRegister(name, out) {
					r.Deregister(name)
				}
				out.Close()
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Broadcast("MESSAGE tick")
				assert.Contains(t, r.Snapshot(), "stable")
			}
		}()
	}
	wg.Wait()

	require.Equal(t, []string{"stable"}, r.Snapshot())
	lines := drain(stable)
	require.Len(t, lines, 1+400)
}
