package chat

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/andy6609/relaychat/internal/protocol"
)

// Registry binds registered display names to their outboxes. The map key set
// is the roster, so names and outboxes can never disagree.
//
// Mutations and snapshots share one mutex. Delivery never runs under it:
// recipients are copied out first and sent to afterwards, so a slow client
// cannot stall registration or other deliveries.
type Registry struct {
	mu       sync.Mutex
	outboxes map[string]*Outbox
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		outboxes: make(map[string]*Outbox),
		logger:   logger,
	}
}

// Register binds name to out if the name is free. It returns the normalized
// name that was registered.
//
// NAMEACCEPTED is queued on out before out becomes reachable by other
// senders, so it is always the first line after the last SUBMITNAME.
func (r *Registry) Register(name string, out *Outbox) (string, error) {
	name, err := normalizeName(name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.outboxes[name]; exists {
		return "", ErrNameTaken
	}
	out.Send(protocol.NameAccepted)
	r.outboxes[name] = out
	ConnectedClients.Inc()
	return name, nil
}

// TryRegister is Register reduced to its outcome.
func (r *Registry) TryRegister(name string, out *Outbox) bool {
	_, err := r.Register(name, out)
	return err == nil
}

// Deregister removes name. It reports whether the name was registered, so
// callers can announce a departure exactly once.
func (r *Registry) Deregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.outboxes[name]; !ok {
		return false
	}
	delete(r.outboxes, name)
	ConnectedClients.Dec()
	return true
}

// Snapshot returns the current roster, sorted.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	names := lo.Keys(r.outboxes)
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outboxes)
}

// Broadcast delivers line to every registered outbox and returns how many
// accepted it.
func (r *Registry) Broadcast(line string) int {
	return r.fanout("broadcast", line, r.recipients())
}

// Publish encodes env and broadcasts it.
func (r *Registry) Publish(env protocol.Envelope) int {
	return r.fanout(env.Kind.String(), env.Encode(), r.recipients())
}

// BroadcastRoster announces the current roster to everyone on it.
func (r *Registry) BroadcastRoster() int {
	r.mu.Lock()
	names := lo.Keys(r.outboxes)
	targets := lo.Values(r.outboxes)
	r.mu.Unlock()

	sort.Strings(names)
	return r.fanout("roster", protocol.EncodeClientList(names), targets)
}

// SendTo delivers line to one recipient. It reports whether the name was
// registered; a closed outbox still counts as attempted.
func (r *Registry) SendTo(name, line string) bool {
	r.mu.Lock()
	out, ok := r.outboxes[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.fanout("direct", line, []*Outbox{out})
	return true
}

// Whisper delivers env to its target and echoes it to its sender, but only
// when both are registered at the same instant. Otherwise nothing is sent.
func (r *Registry) Whisper(env protocol.Envelope) bool {
	r.mu.Lock()
	target, targetOK := r.outboxes[env.Target]
	sender, senderOK := r.outboxes[env.Sender]
	r.mu.Unlock()

	if !targetOK || !senderOK {
		r.logger.Debug("whisper dropped",
			"from", env.Sender, "to", env.Target,
			"target_registered", targetOK, "sender_registered", senderOK)
		return false
	}

	start := time.Now()
	target.Send(env.Encode())
	sender.Send(env.EncodeWhisperEcho())
	MessagesTotal.WithLabelValues(protocol.KindWhisper.String()).Inc()
	DeliveryDuration.WithLabelValues(protocol.KindWhisper.String()).Observe(time.Since(start).Seconds())
	return true
}

func (r *Registry) recipients() []*Outbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Values(r.outboxes)
}

func (r *Registry) fanout(kind, line string, targets []*Outbox) int {
	start := time.Now()
	delivered := 0
	for _, out := range targets {
		// A refusing outbox is skipped; its session finds out on its own read path.
		if out.Send(line) {
			delivered++
		}
	}
	MessagesTotal.WithLabelValues(kind).Inc()
	DeliveryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	return delivered
}
