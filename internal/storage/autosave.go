// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/session"
)

// Autosaver mirrors a session.Store into the history. It saves after every
// assistant or error message and starts a new stored conversation whenever
// the chat is cleared or a new chat begins.
type Autosaver struct {
	history  *ConversationStore
	store    *session.Store
	threadID string
	logger   *zap.Logger

	mu    sync.Mutex
	conv  *StoredConversation
	saved int

	cancel func()
	done   chan struct{}
}

// NewAutosaver creates an Autosaver. Call Start to begin following store.
func NewAutosaver(history *ConversationStore, store *session.Store, threadID string, logger *zap.Logger) *Autosaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Autosaver{history: history, store: store, threadID: threadID, logger: logger}
	a.conv = a.fresh()
	return a
}

// ConversationID returns the ID the current transcript is saved under.
func (a *Autosaver) ConversationID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.ID
}

// Saves returns how many times the transcript has been written.
func (a *Autosaver) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saved
}

// Start subscribes to the store. Messages already in the store are adopted
// into the current conversation.
func (a *Autosaver) Start(ctx context.Context) {
	snap, events, unsubscribe := a.store.SubscribeWithSnapshot()

	a.mu.Lock()
	a.conv.Messages = snap.Messages
	a.conv.Model = snap.Config.ModelName
	a.conv.Mode = snap.Config.Mode
	a.conv.UseRAG = snap.Config.UseRAG
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = func() {
		cancel()
		unsubscribe()
	}
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				a.handle(ctx, ev)
			}
		}
	}()
}

// Stop unsubscribes and waits for the pending save to finish.
func (a *Autosaver) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
}

// Flush saves the current transcript now. Empty transcripts are skipped.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saveLocked(ctx)
}

func (a *Autosaver) handle(ctx context.Context, ev session.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Kind {
	case session.EventMessagesAdded:
		a.conv.Messages = append(a.conv.Messages, ev.Added...)
		for _, m := range ev.Added {
			if m.Role == model.RoleAssistant || m.Role == model.RoleError {
				if err := a.saveLocked(ctx); err != nil {
					a.logger.Warn("HISTORY_SAVE_FAILED", zap.String("conversation_id", a.conv.ID), zap.Error(err))
				}
				break
			}
		}
	case session.EventConfigChanged:
		a.conv.Model = ev.Config.ModelName
		a.conv.Mode = ev.Config.Mode
		a.conv.UseRAG = ev.Config.UseRAG
	case session.EventMessagesCleared, session.EventChatCleared, session.EventNewChat:
		if len(a.conv.Messages) > 0 {
			a.conv = a.fresh()
		}
	}
}

func (a *Autosaver) saveLocked(ctx context.Context) error {
	if len(a.conv.Messages) == 0 {
		return nil
	}
	if _, err := a.history.Save(ctx, a.conv); err != nil {
		return err
	}
	a.saved++
	a.logger.Debug("HISTORY_SAVED",
		zap.String("conversation_id", a.conv.ID),
		zap.Int("messages", len(a.conv.Messages)))
	return nil
}

func (a *Autosaver) fresh() *StoredConversation {
	cfg := a.store.Config()
	return &StoredConversation{
		ID:       uuid.NewString(),
		ThreadID: a.threadID,
		Model:    cfg.ModelName,
		Mode:     cfg.Mode,
		UseRAG:   cfg.UseRAG,
	}
}
