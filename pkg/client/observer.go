package client

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "govuk_events_dropped_total",
	Help: "Total number of events dropped because a subscriber was not keeping up",
})

// Observer is notified of every decoded content item and every search page.
// Calls happen on the goroutine that fetched the data and must not block.
type Observer interface {
	OnContent(item map[string]any)
	OnSearchPage(results []map[string]any)
}

// NopObserver ignores all events.
type NopObserver struct{}

// OnContent implements Observer.
func (NopObserver) OnContent(map[string]any) {}

// OnSearchPage implements Observer.
func (NopObserver) OnSearchPage([]map[string]any) {}

// EventKind identifies the payload of an Event.
type EventKind string

const (
	EventContent    EventKind = "content"
	EventSearchPage EventKind = "search_page"
)

// Event is delivered to Emitter subscribers.
type Event struct {
	Kind    EventKind
	Content map[string]any
	Results []map[string]any
}

// Emitter is an Observer that fans events out to channel subscribers.
// Sends never block: a subscriber whose buffer is full misses the event.
type Emitter struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unsubscribes and closes the channel.
func (e *Emitter) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Event, buffer)

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// OnContent implements Observer.
func (e *Emitter) OnContent(item map[string]any) {
	e.publish(Event{Kind: EventContent, Content: item})
}

// OnSearchPage implements Observer.
func (e *Emitter) OnSearchPage(results []map[string]any) {
	e.publish(Event{Kind: EventSearchPage, Results: results})
}

func (e *Emitter) publish(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			eventsDroppedTotal.Inc()
		}
	}
}
