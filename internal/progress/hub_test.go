package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/mocks"
)

// editRecorder records edits; the first edit blocks until release is closed.
type editRecorder struct {
	mu      sync.Mutex
	edits   []string
	release chan struct{}
	err     error
	entered chan struct{}
	once    sync.Once
}

func newEditRecorder() *editRecorder {
	return &editRecorder{release: make(chan struct{}), entered: make(chan struct{})}
}

func (r *editRecorder) Send(context.Context, int64, domain.Payload) (domain.ArtifactRef, error) {
	return domain.ArtifactRef{}, nil
}

func (r *editRecorder) Forward(context.Context, int64, int64, []int) ([]domain.ArtifactRef, error) {
	return nil, nil
}

func (r *editRecorder) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	r.once.Do(func() {
		close(r.entered)
		<-r.release
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, text)
	return r.err
}

func (r *editRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.edits...)
}

func TestHubCoalescesPendingEdits(t *testing.T) {
	rec := newEditRecorder()
	hub := NewHub(rec, mocks.NewPermissiveLogger())
	defer hub.Close()

	require.True(t, hub.Submit(1, 10, "first"))
	<-rec.entered

	// while "first" is in flight only the newest of these should be sent
	hub.Submit(1, 10, "second")
	hub.Submit(1, 10, "third")
	hub.Submit(1, 10, "fourth")
	close(rec.release)

	assert.Eventually(t, func() bool {
		edits := rec.snapshot()
		return len(edits) == 2 && edits[1] == "fourth"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "fourth"}, rec.snapshot())
}

func TestHubRetiresGoneMessages(t *testing.T) {
	rec := newEditRecorder()
	close(rec.release)
	rec.err = domain.ErrMessageGone
	hub := NewHub(rec, mocks.NewPermissiveLogger())
	defer hub.Close()

	require.True(t, hub.Submit(1, 10, "x"))

	assert.Eventually(t, func() bool { return hub.Retired(1, 10) }, time.Second, 5*time.Millisecond)
	assert.False(t, hub.Submit(1, 10, "y"))
	assert.True(t, hub.Submit(1, 11, "other message"))
}

func TestHubClosedRejects(t *testing.T) {
	rec := newEditRecorder()
	close(rec.release)
	hub := NewHub(rec, mocks.NewPermissiveLogger())
	hub.Close()

	assert.False(t, hub.Submit(1, 1, "late"))
}
