package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn скармливает сессии заготовленные сообщения и записывает кадры.
type fakeConn struct {
	msgs chan ClientMsg

	mu      sync.Mutex
	headers []Header
	bodies  [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan ClientMsg, 16)}
}

func (c *fakeConn) ReadJSON(v any) error {
	msg, ok := <-c.msgs
	if !ok {
		return io.EOF
	}
	*v.(*ClientMsg) = msg
	return nil
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = append(c.headers, v.(Header))
	return nil
}

func (c *fakeConn) WriteBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, data)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) Close() error                     { return nil }

func (c *fakeConn) frameIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.headers))
	for i, h := range c.headers {
		out[i] = h.ID
	}
	return out
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

// fakeSource отдаёт фиксированную укладку; миниатюра — байты идентификатора.
type fakeSource struct {
	entries []Entry
	failIDs map[string]bool
	listErr error
}

func (s *fakeSource) Entries(_ context.Context, _ string) ([]Entry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *fakeSource) Derivative(_ context.Context, imageID string, _, _ int) ([]byte, string, error) {
	if s.failIDs[imageID] {
		return nil, "", errors.New("decode failure")
	}
	return []byte(imageID), "jpg", nil
}

func gridSource() *fakeSource {
	return &fakeSource{entries: []Entry{
		{ID: "far", Pt: domain.Point{X: 0.9, Y: 0.9}},
		{ID: "center", Pt: domain.Point{X: 0.5, Y: 0.5}},
		{ID: "mid", Pt: domain.Point{X: 0.6, Y: 0.6}},
	}}
}

func runSession(t *testing.T, conn *fakeConn, src Source) chan error {
	t.Helper()

	s := NewSession(conn, src, "coll", 100, time.Second, logger.NewSlogLogger())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
	}()
	return done
}

func waitFrames(t *testing.T, conn *fakeConn, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return conn.frameCount() >= n },
		2*time.Second, 5*time.Millisecond)
}

func TestSession_NearestFirst(t *testing.T) {
	conn := newFakeConn()
	done := runSession(t, conn, gridSource())

	conn.msgs <- ClientMsg{
		Type:   msgView,
		Center: domain.Point{X: 0.5, Y: 0.5},
		IconW:  32,
		IconH:  32,
	}

	waitFrames(t, conn, 3)
	assert.Equal(t, []string{"center", "mid", "far"}, conn.frameIDs())

	close(conn.msgs)
	assert.ErrorIs(t, <-done, io.EOF)
}

func TestSession_HeaderMatchesBody(t *testing.T) {
	conn := newFakeConn()
	done := runSession(t, conn, gridSource())

	conn.msgs <- ClientMsg{Type: msgView, IconW: 16, IconH: 16}
	waitFrames(t, conn, 3)

	conn.mu.Lock()
	for i, h := range conn.headers {
		assert.Equal(t, h.ID, string(conn.bodies[i]))
		assert.Equal(t, 16, h.W)
		assert.Equal(t, "jpg", h.Ext)
		assert.Equal(t, i, h.N)
	}
	conn.mu.Unlock()

	close(conn.msgs)
	<-done
}

func TestSession_LimitTruncates(t *testing.T) {
	conn := newFakeConn()
	done := runSession(t, conn, gridSource())

	conn.msgs <- ClientMsg{
		Type:   msgView,
		Center: domain.Point{X: 0.5, Y: 0.5},
		Limit:  2,
	}

	waitFrames(t, conn, 2)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, conn.frameCount())
	assert.Equal(t, []string{"center", "mid"}, conn.frameIDs())

	close(conn.msgs)
	<-done
}

func TestSession_CreditBackpressure(t *testing.T) {
	conn := newFakeConn()
	done := runSession(t, conn, gridSource())

	conn.msgs <- ClientMsg{Type: msgView, Credits: 1}

	waitFrames(t, conn, 1)
	// без пополнения выдача стоит
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, conn.frameCount())

	conn.msgs <- ClientMsg{Type: msgCredit, N: 2}
	waitFrames(t, conn, 3)

	close(conn.msgs)
	<-done
}

func TestSession_BadEntrySkipped(t *testing.T) {
	src := gridSource()
	src.failIDs = map[string]bool{"mid": true}

	conn := newFakeConn()
	done := runSession(t, conn, src)

	conn.msgs <- ClientMsg{Type: msgView, Center: domain.Point{X: 0.5, Y: 0.5}}

	waitFrames(t, conn, 2)
	assert.Equal(t, []string{"center", "far"}, conn.frameIDs(), "битая миниатюра не рвёт поток")

	close(conn.msgs)
	<-done
}

func TestSession_EntriesErrorDoesNotKillSession(t *testing.T) {
	src := gridSource()
	src.listErr = errors.New("collection not finalized")

	conn := newFakeConn()
	done := runSession(t, conn, src)

	conn.msgs <- ClientMsg{Type: msgView}
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, conn.frameCount())

	// после устранения причины следующий запрос обслуживается
	src.listErr = nil
	conn.msgs <- ClientMsg{Type: msgView}
	waitFrames(t, conn, 3)

	close(conn.msgs)
	<-done
}

func TestSession_ViewRestartsDelivery(t *testing.T) {
	conn := newFakeConn()
	done := runSession(t, conn, gridSource())

	// первая выдача застревает без кредитов
	conn.msgs <- ClientMsg{Type: msgView, Credits: 1, IconW: 8, IconH: 8}
	waitFrames(t, conn, 1)

	// новый запрос окна начинает выдачу заново со свежим окном кредитов
	conn.msgs <- ClientMsg{Type: msgView, Credits: 100, IconW: 64, IconH: 64}
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		n := 0
		for _, h := range conn.headers {
			if h.W == 64 {
				n++
			}
		}
		return n == 3
	}, 2*time.Second, 5*time.Millisecond)

	close(conn.msgs)
	<-done
}

func TestSession_ContextCancelStops(t *testing.T) {
	conn := newFakeConn()
	s := NewSession(conn, gridSource(), "coll", 100, time.Second, logger.NewSlogLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	cancel()
	close(conn.msgs)

	select {
	case err := <-done:
		assert.NoError(t, err, "отмена контекста завершает сессию без ошибки")
	case <-time.After(time.Second):
		t.Fatal("сессия не завершилась после отмены контекста")
	}
}
