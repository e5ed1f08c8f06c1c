package progress

import (
	"context"
	"errors"
	"sync"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

type messageKey struct {
	chatID    int64
	messageID int
}

// writer is the single goroutine editing one message. Updates submitted
// while an edit is in flight collapse into the newest one.
type writer struct {
	mu      sync.Mutex
	pending string
	has     bool
	wake    chan struct{}
}

// Hub owns one writer per (chat, message).
type Hub struct {
	transport domain.Transport
	logger    types.Logger

	mu      sync.Mutex
	writers map[messageKey]*writer
	retired map[messageKey]bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a Hub editing through transport.
func NewHub(transport domain.Transport, logger types.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		transport: transport,
		logger:    logger,
		writers:   make(map[messageKey]*writer),
		retired:   make(map[messageKey]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit queues text for the message. It returns false when the message
// has been retired or the hub is closed.
func (h *Hub) Submit(chatID int64, messageID int, text string) bool {
	key := messageKey{chatID: chatID, messageID: messageID}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.retired[key] {
		return false
	}
	w, ok := h.writers[key]
	if !ok {
		w = &writer{wake: make(chan struct{}, 1)}
		h.writers[key] = w
		h.wg.Add(1)
		go h.run(key, w)
	}

	w.mu.Lock()
	w.pending = text
	w.has = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

// Retired reports whether the message was found gone.
func (h *Hub) Retired(chatID int64, messageID int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retired[messageKey{chatID: chatID, messageID: messageID}]
}

// Release stops the writer of a finished message after its pending edit.
func (h *Hub) Release(chatID int64, messageID int) {
	key := messageKey{chatID: chatID, messageID: messageID}
	h.mu.Lock()
	w, ok := h.writers[key]
	if ok {
		delete(h.writers, key)
	}
	h.mu.Unlock()
	if ok {
		close(w.wake)
	}
}

// Close stops every writer and waits for in-flight edits.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
	h.wg.Wait()
}

func (h *Hub) run(key messageKey, w *writer) {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case _, open := <-w.wake:
			if done := h.flush(key, w); done || !open {
				return
			}
		}
	}
}

// flush performs the pending edit. It returns true when the writer must
// stop for good.
func (h *Hub) flush(key messageKey, w *writer) bool {
	w.mu.Lock()
	text, has := w.pending, w.has
	w.has = false
	w.mu.Unlock()
	if !has {
		return false
	}

	err := h.transport.Edit(h.ctx, key.chatID, key.messageID, text)
	switch {
	case err == nil, errors.Is(err, domain.ErrMessageNotModified):
		return false
	case errors.Is(err, domain.ErrMessageGone):
		h.retire(key)
		return true
	case errors.Is(err, context.Canceled):
		return true
	default:
		h.logger.Debug(h.ctx, "Status edit dropped", types.Fields{
			"chat_id":    key.chatID,
			"message_id": key.messageID,
			"error":      err.Error(),
		})
		return false
	}
}

func (h *Hub) retire(key messageKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retired[key] = true
	delete(h.writers, key)
	h.logger.Warn(h.ctx, "Status message gone, retiring writer", types.Fields{
		"chat_id":    key.chatID,
		"message_id": key.messageID,
	})
}
