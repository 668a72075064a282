package relay

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torqfin/messaging-core/codec"
	"github.com/torqfin/messaging-core/recovery"
	"github.com/torqfin/messaging-core/tlv"
	"github.com/torqfin/messaging-core/transport"
	"github.com/torqfin/messaging-core/types"
)

// DroppedReason labels why an inbound message never reached fan-out, for
// the relay's drop-rate metrics.
type DroppedReason string

const (
	DroppedValidation         DroppedReason = "validation"
	DroppedTopic              DroppedReason = "topic_extraction"
	DroppedBackpressure       DroppedReason = "backpressure"
	DroppedRecoveryUnroutable DroppedReason = "recovery_unroutable"
)

// pendingRecoveryEntry tracks one recovery request the relay has forwarded
// to the producer connection owning its source, awaiting resolution.
type pendingRecoveryEntry struct {
	Req         tlv.RecoveryRequest
	RequestedAt time.Time
}

// Relay is a single domain's broker: a subscription registry, a topic
// strategy, a validation policy, and the set of currently connected
// consumers (spec.md §4.3).
type Relay struct {
	Domain          types.RelayDomain
	Policy          ValidationPolicy
	Strategy        TopicStrategy
	DefaultTopic    string
	QueueCapacity   int
	HighWatermark   int
	LowWatermark    int
	DegradedTimeout time.Duration

	Registry *Registry
	log      *logrus.Logger

	// Recovery, when set, is the producer-side retention/sequencer pair the
	// relay retains every ingested message into and answers retransmit-kind
	// RecoveryRequests from directly. nil disables local recovery answers:
	// every RecoveryRequest is then forwarded to the owning producer
	// connection (spec.md §2, §4.4).
	Recovery *recovery.Producer

	mu          sync.RWMutex
	connections map[ConsumerID]*Connection
	nextID      ConsumerID

	sourceMu     sync.RWMutex
	sourceOwners map[types.SourceType]ConsumerID

	recoveryMu      sync.Mutex
	pendingRecovery map[recovery.SourceDomainKey]pendingRecoveryEntry

	dropCounts map[DroppedReason]uint64
	dropMu     sync.Mutex
}

// New constructs a Relay for domain using policy's defaults unless
// overridden, backed by registry and strategy (spec.md §4.3).
func New(domain types.RelayDomain, registry *Registry, strategy TopicStrategy, log *logrus.Logger) *Relay {
	if log == nil {
		log = logrus.New()
	}
	return &Relay{
		Domain:          domain,
		Policy:          DefaultPolicy(domain),
		Strategy:        strategy,
		QueueCapacity:   1024,
		HighWatermark:   768,
		LowWatermark:    256,
		DegradedTimeout: 5 * time.Second,
		Registry:        registry,
		log:             log,
		connections:     make(map[ConsumerID]*Connection),
		sourceOwners:    make(map[types.SourceType]ConsumerID),
		pendingRecovery: make(map[recovery.SourceDomainKey]pendingRecoveryEntry),
		dropCounts:      make(map[DroppedReason]uint64),
	}
}

// Accept registers a newly accepted transport.Conn under a fresh identity,
// builds its bounded outbound queue from the relay's configured capacity
// and watermarks, and spawns its writer task (spec.md §5: "a relay spawns,
// per accepted connection: one inbound reader task and one outbound writer
// task"). Callers run the inbound reader loop themselves (calling Ingest
// per message) on whatever goroutine reads off conn.
func (r *Relay) Accept(conn *transport.Conn) *Connection {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	c := NewConnection(id, conn, r.QueueCapacity, r.HighWatermark, r.LowWatermark, r.DegradedTimeout)
	r.connections[id] = c
	r.mu.Unlock()

	go c.WriterLoop()
	return c
}

// Disconnect tears down c: drops its subscriptions, closes its transport,
// and forgets it.
func (r *Relay) Disconnect(c *Connection) {
	r.Registry.Disconnect(c.ID)
	c.Disconnect()
	r.mu.Lock()
	delete(r.connections, c.ID)
	r.mu.Unlock()
}

func (r *Relay) recordDrop(reason DroppedReason) {
	r.dropMu.Lock()
	r.dropCounts[reason]++
	r.dropMu.Unlock()
}

// DropCounts returns a snapshot of drop counters by reason.
func (r *Relay) DropCounts() map[DroppedReason]uint64 {
	r.dropMu.Lock()
	defer r.dropMu.Unlock()
	out := make(map[DroppedReason]uint64, len(r.dropCounts))
	for k, v := range r.dropCounts {
		out[k] = v
	}
	return out
}

// Ingest processes one inbound message received on sender's connection:
// validates it per policy, extracts its topic, and fans it out to every
// other subscriber of that topic (spec.md §4.3 fan-out algorithm). It
// returns the number of recipients the message was enqueued to.
func (r *Relay) Ingest(sender *Connection, buf []byte) int {
	msg, err := Validate(buf, r.Domain, r.Policy)
	if err != nil {
		r.recordDrop(DroppedValidation)
		if r.Policy.Audit {
			r.log.WithFields(logrus.Fields{"domain": r.Domain, "sender": sender.ID, "error": err}).Warn("message validation failed")
		}
		if r.Policy.Strict {
			r.Disconnect(sender)
		}
		return 0
	}

	if r.handleSubscriptions(sender, msg) {
		sender.MarkSubscribed()
		return 0 // control traffic, never fanned out (spec.md §4.3)
	}

	if r.handleRecoveryRequests(sender, buf, msg) {
		sender.MarkSubscribed()
		return 0 // control traffic, routed point-to-point, never fanned out (spec.md §2)
	}

	r.sourceMu.Lock()
	r.sourceOwners[msg.Header.Source] = sender.ID
	r.sourceMu.Unlock()

	if r.Recovery != nil {
		r.Recovery.Retain(msg.Header.Source, r.Domain, msg.Header.Sequence, buf)
	}
	r.resolvePendingRecovery(msg.Header.Source, msg.Header.Sequence)

	topic, ok := r.Strategy.Extract(msg, buf)
	if !ok {
		if r.DefaultTopic == "" {
			r.recordDrop(DroppedTopic)
			return 0
		}
		topic = r.DefaultTopic
	}

	if r.Policy.Audit {
		r.log.WithFields(logrus.Fields{"domain": r.Domain, "sender": sender.ID, "topic": topic, "sequence": msg.Header.Sequence}).Info("message accepted")
	}

	delivered := 0
	for _, subID := range r.Registry.Subscribers(topic) {
		if subID == sender.ID {
			continue // no self-echo (spec.md §8.1 invariant 6)
		}
		r.mu.RLock()
		sub, ok := r.connections[subID]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if sub.Enqueue(buf) {
			delivered++
			continue
		}
		r.recordDrop(DroppedBackpressure)
		if r.Policy.Backpressure == BackpressureDisconnect {
			r.Disconnect(sub)
		}
	}
	return delivered
}

// handleSubscriptions applies every Subscription control TLV in msg to the
// registry on sender's behalf (spec.md §4.3 "Subscribe/unsubscribe
// protocol"), reporting whether msg carried any. A message that is purely
// subscription control never reaches fan-out.
func (r *Relay) handleSubscriptions(sender *Connection, msg codec.Message) bool {
	handled := false
	for _, entry := range msg.TLVs {
		if entry.Type != tlv.TypeSubscription {
			continue
		}
		sub, err := tlv.DecodeSubscription(entry.Payload)
		if err != nil {
			continue
		}
		handled = true
		switch sub.Action {
		case tlv.SubscriptionAdd:
			if err := r.Registry.Subscribe(sender.ID, sub.Topic); err != nil && r.Policy.Audit {
				r.log.WithFields(logrus.Fields{"consumer_id": sender.ID, "topic": sub.Topic, "error": err}).Warn("subscribe rejected")
			}
		case tlv.SubscriptionDrop:
			r.Registry.Unsubscribe(sender.ID, sub.Topic)
		}
	}
	return handled
}

// handleRecoveryRequests routes every RecoveryRequest control TLV in msg to
// its producer instead of fanning it out through Registry.Subscribers
// (spec.md §2: "Control flows (recovery requests) travel consumer -> relay
// -> producer via the same channel"). It reports whether msg carried any.
func (r *Relay) handleRecoveryRequests(sender *Connection, buf []byte, msg codec.Message) bool {
	handled := false
	for _, entry := range msg.TLVs {
		if entry.Type != tlv.TypeRecoveryRequest {
			continue
		}
		handled = true
		r.respondToRecovery(sender, buf, tlv.DecodeRecoveryRequest(entry.Payload))
	}
	return handled
}

// respondToRecovery answers req directly from the relay's own retention
// window when it holds the requested range (the common case, since the
// relay retains every message it fans out), or else forwards the original
// request message to the connection that owns req.Source so the producer
// itself can answer from its own state — a snapshot in particular, since
// the relay has no opinion on domain state and cannot build one (spec.md
// §4.4). Either way the request is a point-to-point exchange between one
// consumer and one producer, never a topic broadcast.
func (r *Relay) respondToRecovery(requester *Connection, buf []byte, req tlv.RecoveryRequest) {
	source := types.SourceType(req.Source)

	if r.Recovery != nil {
		resp := r.Recovery.Respond(req, r.Recovery.CurrentSequence(source, r.Domain))
		if resp.Kind == tlv.RecoveryRetransmit && len(resp.Messages) > 0 {
			for _, m := range resp.Messages {
				requester.Enqueue(m)
			}
			return
		}
	}

	r.sourceMu.RLock()
	ownerID, known := r.sourceOwners[source]
	r.sourceMu.RUnlock()

	r.mu.RLock()
	owner, ok := r.connections[ownerID]
	r.mu.RUnlock()
	if !known || !ok {
		r.recordDrop(DroppedRecoveryUnroutable)
		if r.Policy.Audit {
			r.log.WithFields(logrus.Fields{"domain": r.Domain, "source": source}).Warn("recovery request has no known producer connection")
		}
		return
	}

	r.recoveryMu.Lock()
	r.pendingRecovery[recovery.SourceDomainKey{Source: source, Domain: r.Domain}] = pendingRecoveryEntry{Req: req, RequestedAt: time.Now()}
	r.recoveryMu.Unlock()

	if !owner.Enqueue(buf) {
		r.recordDrop(DroppedBackpressure)
	}
}

// resolvePendingRecovery clears a forwarded recovery request once the
// producer's stream has advanced past the requested range, under the
// assumption that traffic resumed because the gap was filled out of band.
func (r *Relay) resolvePendingRecovery(source types.SourceType, seq uint64) {
	k := recovery.SourceDomainKey{Source: source, Domain: r.Domain}
	r.recoveryMu.Lock()
	if e, ok := r.pendingRecovery[k]; ok && seq >= e.Req.ToSequence {
		delete(r.pendingRecovery, k)
	}
	r.recoveryMu.Unlock()
}

// PendingRecovery returns a snapshot of recovery requests the relay has
// forwarded to a producer connection and not yet seen resolved by
// subsequent traffic on that (source, domain) stream (spec.md §1.4:
// "torqctl recovery pending").
func (r *Relay) PendingRecovery() []tlv.RecoveryRequest {
	r.recoveryMu.Lock()
	defer r.recoveryMu.Unlock()
	out := make([]tlv.RecoveryRequest, 0, len(r.pendingRecovery))
	for _, e := range r.pendingRecovery {
		out = append(out, e.Req)
	}
	return out
}

// SubscriberNames returns the socket-derived name (transport.Conn.Name())
// of every connection currently subscribed to topic, for admin/debug
// surfaces that should identify consumers by endpoint rather than by their
// opaque server-assigned ConsumerID (spec.md §3).
func (r *Relay) SubscriberNames(topic string) []string {
	ids := r.Registry.Subscribers(topic)
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		c, ok := r.connections[id]
		if !ok || c.Conn == nil {
			continue
		}
		names = append(names, c.Conn.Name())
	}
	return names
}

// SweepDegraded disconnects any connection that has been Degraded past its
// timeout, per the Signal/Execution backpressure policy (spec.md §4.3).
// Callers run this periodically (e.g. on a ticker) alongside Ingest.
func (r *Relay) SweepDegraded() {
	r.mu.RLock()
	targets := make([]*Connection, 0)
	for _, c := range r.connections {
		if c.State() == StateDegraded && c.DegradedTimedOut() {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()
	for _, c := range targets {
		r.Disconnect(c)
	}
}

// ConnectionStats returns a snapshot of every connected consumer's stats,
// keyed by identity (spec.md §4.3: "exposes stats per identity").
func (r *Relay) ConnectionStats() map[ConsumerID]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ConsumerID]Stats, len(r.connections))
	for id, c := range r.connections {
		out[id] = c.Stats()
	}
	return out
}
