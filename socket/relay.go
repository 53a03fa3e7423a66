package socket

import (
	"log"
	"math"
	"sync"

	"github.com/mewannirundakaperera/SkillNet-sub001/lifecycle"
	"github.com/mewannirundakaperera/SkillNet-sub001/models"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

// Emitted events
const (
	EventRequestUpdated      = "requestUpdated"
	EventGroupRequestUpdated = "groupRequestUpdated"
)

// Broadcaster is the part of the socket.io server the relay needs
type Broadcaster interface {
	BroadcastToRoom(namespace string, room, event string, args ...interface{}) bool
}

// Update is the payload pushed to watchers
type Update struct {
	RequestID string      `json:"requestId"`
	Deleted   bool        `json:"deleted,omitempty"`
	Request   interface{} `json:"request"`
}

// Relay pushes store changes of requests to the rooms watching them.
// Images older than the last one sent for a request are dropped, so a watcher always ends
// on the latest state even when a backend delivers changes out of order.
type Relay struct {
	Store store.Store
	Out   Broadcaster

	mu   sync.Mutex
	sent map[string]int64
}

// Start subscribes to both request collections; the returned func stops the relay
func (r *Relay) Start() func() {
	stopRequests := r.Store.Subscribe(store.Requests, nil, r.forward)
	stopGroups := r.Store.Subscribe(store.GroupRequests, nil, r.forward)
	log.Println("📡 Socket relay started")
	return func() {
		stopRequests()
		stopGroups()
	}
}

// fresh records the version of ch and reports whether it is newer than what was sent
func (r *Relay) fresh(ch store.Change) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[string]int64)
	}
	key := ch.Collection.Table + "/" + ch.ID
	last := r.sent[key]
	if ch.Kind == store.ChangeDeleted {
		r.sent[key] = math.MaxInt64
		return last != math.MaxInt64
	}
	v := ch.Version()
	if v == 0 {
		return last != math.MaxInt64
	}
	if v <= last {
		return false
	}
	r.sent[key] = v
	return true
}

func (r *Relay) forward(ch store.Change) {
	if !r.fresh(ch) {
		log.Printf("⏭️ Dropping stale image of %s/%s (version %d)", ch.Collection.Table, ch.ID, ch.Version())
		return
	}
	update := Update{RequestID: ch.ID, Deleted: ch.Kind == store.ChangeDeleted}
	event := EventRequestUpdated

	switch ch.Collection {
	case store.Requests:
		var req models.Request
		if err := ch.Decode(&req); err != nil {
			log.Printf("❌ Failed to decode request %s: %v", ch.ID, err)
			return
		}
		update.Request = req
	case store.GroupRequests:
		var g models.GroupRequest
		if err := ch.Decode(&g); err != nil {
			log.Printf("❌ Failed to decode group request %s: %v", ch.ID, err)
			return
		}
		update.Request = lifecycle.View(g)
		event = EventGroupRequestUpdated
	default:
		return
	}
	r.Out.BroadcastToRoom(Namespace, ch.ID, event, update)
}
