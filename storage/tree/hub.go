package tree

import "sync"

type (
	// Hub fans change signals out to in-process subscribers.
	// Each subscription owns a goroutine that delivers notifications sequentially;
	// signals arriving while a delivery is running are coalesced into a single next delivery.
	Hub struct {
		mu   sync.Mutex
		subs map[*HubSubscription]struct{}
	}

	HubSubscription struct {
		hub      *Hub
		path     string
		load     func() interface{}
		onChange func(Node)
		signal   chan struct{}
		done     chan struct{}
		once     sync.Once
	}
)

func NewHub() *Hub {
	return &Hub{subs: make(map[*HubSubscription]struct{})}
}

// Subscribe registers onChange for changes at or under path.
// load reads the current subtree; it is called for the initial delivery (right away) and for every change.
func (h *Hub) Subscribe(path string, load func() interface{}, onChange func(Node)) *HubSubscription {
	sub := &HubSubscription{
		hub:      h,
		path:     path,
		load:     load,
		onChange: onChange,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	sub.notify() // initial value
	go sub.loop()
	return sub
}

// Publish signals every subscriber whose path overlaps one of the changed paths.
func (h *Hub) Publish(changed ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		for _, p := range changed {
			if Overlaps(sub.path, p) {
				sub.notify()
				break
			}
		}
	}
}

// Close cancels every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*HubSubscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Cancel()
	}
}

func (s *HubSubscription) notify() {
	select {
	case s.signal <- struct{}{}:
	default: // a delivery is already queued
	}
}

func (s *HubSubscription) loop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
			select {
			case <-s.done:
				return
			default:
			}
			payload, _ := s.load().(Node)
			s.onChange(payload)
		}
	}
}

// Cancel stops deliveries. It may be called more than once.
func (s *HubSubscription) Cancel() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.done)
	})
	return nil
}
