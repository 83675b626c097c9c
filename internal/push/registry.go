package push

import (
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Current number of connected push channels.",
		},
	)
	pushDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_delivered_total",
			Help: "Total number of payloads delivered to a channel.",
		},
	)
	pushDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_dropped_total",
			Help: "Total number of payloads dropped on dead channels.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, pushDelivered, pushDropped)
}

// Registry maps user IDs to their live channels. A user may hold several
// connections at once (multiple tabs or devices); each receives every push.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64][]Channel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64][]Channel)}
}

// Connect registers ch as one of userID's live channels.
func (r *Registry) Connect(userID int64, ch Channel) {
	r.mu.Lock()
	r.conns[userID] = append(r.conns[userID], ch)
	r.mu.Unlock()
	wsConnections.Inc()
	log.Debug().Int64("user_id", userID).Msg("push channel connected")
}

// Disconnect removes ch from userID's channels and closes it. Unknown
// channels are ignored, so a double disconnect is harmless.
func (r *Registry) Disconnect(userID int64, ch Channel) {
	r.mu.Lock()
	chans := r.conns[userID]
	removed := false
	for i, c := range chans {
		if c == ch {
			chans = append(chans[:i], chans[i+1:]...)
			removed = true
			break
		}
	}
	if len(chans) == 0 {
		delete(r.conns, userID)
	} else {
		r.conns[userID] = chans
	}
	r.mu.Unlock()

	if removed {
		wsConnections.Dec()
		_ = ch.Close()
		log.Debug().Int64("user_id", userID).Msg("push channel disconnected")
	}
}

// ConnectionCount reports how many channels userID currently holds.
func (r *Registry) ConnectionCount(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// SendToUser fans raw bytes out to every channel of userID. Channels whose
// write fails are dropped from the registry. A user with no channels is not
// an error; pushes are best effort by contract.
func (r *Registry) SendToUser(userID int64, payload []byte) {
	r.mu.RLock()
	chans := make([]Channel, len(r.conns[userID]))
	copy(chans, r.conns[userID])
	r.mu.RUnlock()

	for _, ch := range chans {
		if err := ch.Send(payload); err != nil {
			pushDropped.Inc()
			log.Debug().Err(err).Int64("user_id", userID).Msg("push write failed, dropping channel")
			r.Disconnect(userID, ch)
			continue
		}
		pushDelivered.Inc()
	}
}

// Push marshals event to JSON and sends it to userID. Marshal failures are
// logged and swallowed.
func (r *Registry) Push(userID int64, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("push event not serializable")
		return
	}
	r.SendToUser(userID, payload)
}

// Close disconnects every channel, e.g. on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[int64][]Channel)
	r.mu.Unlock()

	for _, chans := range conns {
		for _, ch := range chans {
			_ = ch.Close()
			wsConnections.Dec()
		}
	}
}
