// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	"github.com/jeranaias/ragdesk-tui/internal/model"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies which mutation produced an Event.
type EventKind int

const (
	EventConfigChanged EventKind = iota
	EventMessagesAdded
	EventMessagesCleared
	EventChatCleared
	EventNewChat
)

// String returns a short name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventConfigChanged:
		return "config_changed"
	case EventMessagesAdded:
		return "messages_added"
	case EventMessagesCleared:
		return "messages_cleared"
	case EventChatCleared:
		return "chat_cleared"
	case EventNewChat:
		return "new_chat"
	default:
		return "unknown"
	}
}

// Event describes one store mutation. Seq increases by one per mutation.
type Event struct {
	Kind           EventKind
	Seq            uint64
	Len            int
	ClearTrigger   uint64
	NewChatTrigger uint64
	Config         model.ChatConfig
	// Added holds copies of the appended messages for EventMessagesAdded.
	Added []model.Message
}

// =============================================================================
// STORE
// =============================================================================

// Store owns the chat session state. It is safe for concurrent use; all
// writes go through its methods.
type Store struct {
	mu             sync.RWMutex
	config         model.ChatConfig
	messages       []model.Message
	clearTrigger   uint64
	newChatTrigger uint64
	seq            uint64
	closed         bool

	subs    map[int]*subscriber
	nextSub int
}

// NewStore creates a store with the given initial configuration.
func NewStore(cfg model.ChatConfig) *Store {
	return &Store{
		config: cfg,
		subs:   make(map[int]*subscriber),
	}
}

// Config returns the current chat configuration.
func (s *Store) Config() model.ChatConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Messages returns a copy of the message sequence.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// ClearTrigger returns the clear counter.
func (s *Store) ClearTrigger() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clearTrigger
}

// NewChatTrigger returns the new-chat counter.
func (s *Store) NewChatTrigger() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newChatTrigger
}

// UpdateConfig merges the non-nil fields of p into the configuration.
// Values are not validated.
func (s *Store) UpdateConfig(p model.ConfigPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.config = s.config.Merge(p)
	s.publishLocked(EventConfigChanged, nil)
}

// AddMessage appends one message.
func (s *Store) AddMessage(m model.Message) {
	s.AddMessages(m)
}

// AddMessages appends messages in order as a single mutation.
func (s *Store) AddMessages(msgs ...model.Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	added := make([]model.Message, len(msgs))
	for i, m := range msgs {
		added[i] = m.Clone()
		s.messages = append(s.messages, m.Clone())
	}
	s.publishLocked(EventMessagesAdded, added)
}

// ClearMessages empties the sequence without touching the counters.
func (s *Store) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.messages = nil
	s.publishLocked(EventMessagesCleared, nil)
}

// ClearChat empties the sequence and bumps the clear counter.
func (s *Store) ClearChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.messages = nil
	s.clearTrigger++
	s.publishLocked(EventChatCleared, nil)
}

// NewChat bumps the new-chat counter. Messages are left to the observers.
func (s *Store) NewChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.newChatTrigger++
	s.publishLocked(EventNewChat, nil)
}

// Close closes every subscriber channel. Later mutations are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subs {
		sub.stop()
		delete(s.subs, id)
	}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe returns a channel that receives every later Event in order, and
// a function that cancels the subscription. Delivery never blocks the store.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeLocked()
}

// Snapshot is the store state at the moment a subscription began.
type Snapshot struct {
	Messages []model.Message
	Config   model.ChatConfig
	// Seq is the sequence of the last event already reflected in Messages.
	// The first event on the channel has Seq+1.
	Seq uint64
}

// SubscribeWithSnapshot subscribes and copies the current state under one
// lock, so every later mutation arrives as an event and none is also in the
// snapshot.
func (s *Store) SubscribeWithSnapshot() (Snapshot, <-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Messages: make([]model.Message, len(s.messages)),
		Config:   s.config,
		Seq:      s.seq,
	}
	for i, m := range s.messages {
		snap.Messages[i] = m.Clone()
	}
	events, cancel := s.subscribeLocked()
	return snap, events, cancel
}

func (s *Store) subscribeLocked() (<-chan Event, func()) {
	sub := newSubscriber()
	if s.closed {
		sub.stop()
		return sub.out, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			sub.stop()
		})
	}
	return sub.out, cancel
}

func (s *Store) publishLocked(kind EventKind, added []model.Message) {
	s.seq++
	ev := Event{
		Kind:           kind,
		Seq:            s.seq,
		Len:            len(s.messages),
		ClearTrigger:   s.clearTrigger,
		NewChatTrigger: s.newChatTrigger,
		Config:         s.config,
		Added:          added,
	}
	for _, sub := range s.subs {
		sub.push(ev)
	}
}

// subscriber buffers events without bound and pumps them to out from its
// own goroutine, so a slow reader never stalls a writer.
type subscriber struct {
	out    chan Event
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscriber() *subscriber {
	sub := &subscriber{
		out:    make(chan Event),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub
}

func (sub *subscriber) push(ev Event) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, ev)
	sub.mu.Unlock()
	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *subscriber) stop() {
	sub.once.Do(func() { close(sub.done) })
}

func (sub *subscriber) pump() {
	defer close(sub.out)
	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			sub.mu.Unlock()
			select {
			case <-sub.signal:
				continue
			case <-sub.done:
				return
			}
		}
		ev := sub.queue[0]
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- ev:
		case <-sub.done:
			return
		}
	}
}
