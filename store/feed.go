package store

import (
	"log"
	"sync"
)

const subscriberBuffer = 64

// Broker fans store changes out to subscribers. Each subscriber gets its own goroutine
// so a slow reader never blocks a writer; changes are dropped for a reader whose buffer is full.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	collection Collection
	filter     Conditions
	ch         chan Change
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*subscription)}
}

// Subscribe registers onChange for changes in c that match filter
func (b *Broker) Subscribe(c Collection, filter Conditions, onChange func(Change)) func() {
	sub := &subscription{collection: c, filter: filter, ch: make(chan Change, subscriberBuffer)}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		for ch := range sub.ch {
			onChange(ch)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish delivers ch to every matching subscriber
func (b *Broker) Publish(ch Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.collection != ch.Collection {
			continue
		}
		if len(sub.filter) > 0 {
			ok, err := evaluate(ch.Item, sub.filter)
			if err != nil || !ok {
				continue
			}
		}
		select {
		case sub.ch <- ch:
		default:
			log.Printf("⚠️ Subscriber buffer full, dropping change for %s/%s", ch.Collection.Table, ch.ID)
		}
	}
}
