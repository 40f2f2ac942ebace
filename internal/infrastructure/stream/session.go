package stream

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
)

// Session обслуживает одного клиента: читает запросы окна просмотра и
// пополнения кредитов, в ответ шлёт миниатюры в порядке удаления от центра
// окна. Новый запрос окна отменяет текущую выдачу и начинает новую.
type Session struct {
	conn       Conn
	src        Source
	log        logger.Logger
	collection string // коллекция по умолчанию, если клиент не указал свою

	defaultCredits int
	writeTimeout   time.Duration

	// wmu упорядочивает записи в соединение: сменяющие друг друга
	// выдачи не должны перемежать кадры
	wmu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	credits chan int
	wg      sync.WaitGroup
}

func NewSession(conn Conn, src Source, collection string, defaultCredits int, writeTimeout time.Duration, log logger.Logger) *Session {
	if defaultCredits < 1 {
		defaultCredits = 1
	}
	return &Session{
		conn:           conn,
		src:            src,
		log:            log,
		collection:     collection,
		defaultCredits: defaultCredits,
		writeTimeout:   writeTimeout,
	}
}

// Run читает сообщения клиента до закрытия соединения или отмены контекста.
// При выходе дожидается остановки выдачи.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		s.stop()
		s.wg.Wait()
	}()

	for {
		var msg ClientMsg
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch msg.Type {
		case msgView:
			s.restart(ctx, msg)
		case msgCredit:
			s.replenish(msg.N)
		default:
			s.log.Warnf("неизвестный тип сообщения клиента: %q", msg.Type)
		}
	}
}

// restart отменяет текущую выдачу и запускает новую под свежим окном кредитов.
func (s *Session) restart(ctx context.Context, req ClientMsg) {
	if req.Collection == "" {
		req.Collection = s.collection
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	credits := make(chan int, 16)
	s.credits = credits
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := s.produce(runCtx, req, credits); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Errorf(err, "выдача коллекции %s прервана", req.Collection)
		}
	}()
}

func (s *Session) replenish(n int) {
	if n < 1 {
		return
	}
	s.mu.Lock()
	credits := s.credits
	s.mu.Unlock()
	if credits == nil {
		return
	}
	select {
	case credits <- n:
	default:
		// клиент шлёт кредиты быстрее, чем выдача их тратит; лишние
		// пополнения можно терять, следующие придут вместе с запросом
	}
}

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.credits = nil
}

// produce шлёт миниатюры укладки, начиная с ближайших к центру окна.
// На каждую миниатюру тратится один кредит; при исчерпании окна выдача
// ждёт пополнения от клиента.
func (s *Session) produce(ctx context.Context, req ClientMsg, credits chan int) error {
	entries, err := s.src.Entries(ctx, req.Collection)
	if err != nil {
		return err
	}

	sort.SliceStable(entries, func(a, b int) bool {
		da := distSq(entries[a].Pt.X, entries[a].Pt.Y, req.Center.X, req.Center.Y)
		db := distSq(entries[b].Pt.X, entries[b].Pt.Y, req.Center.X, req.Center.Y)
		if da != db {
			return da < db
		}
		return entries[a].ID < entries[b].ID
	})

	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	remaining := req.Credits
	if remaining < 1 {
		remaining = s.defaultCredits
	}

	for n, entry := range entries {
		for remaining == 0 {
			select {
			case add := <-credits:
				remaining += add
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		remaining--

		data, ext, err := s.src.Derivative(ctx, entry.ID, req.IconW, req.IconH)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// битое изображение не должно рвать весь поток
			s.log.Warnf("миниатюра %s пропущена: %v", entry.ID, err)
			continue
		}

		hdr := Header{
			ID:  entry.ID,
			X:   entry.Pt.X,
			Y:   entry.Pt.Y,
			W:   req.IconW,
			H:   req.IconH,
			Ext: ext,
			N:   n,
		}
		if err := s.writeFrame(ctx, hdr, data); err != nil {
			return err
		}
	}

	return nil
}

// writeFrame пишет пару кадров атомарно относительно других выдач.
func (s *Session) writeFrame(ctx context.Context, hdr Header, data []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return e.Wrap("Session.writeFrame", err)
		}
	}
	if err := s.conn.WriteJSON(hdr); err != nil {
		return e.Wrap("Session.writeFrame", err)
	}
	if err := s.conn.WriteBinary(data); err != nil {
		return e.Wrap("Session.writeFrame", err)
	}
	return nil
}

func distSq(x1, y1, x2, y2 float64) float64 {
	dx := x1 - x2
	dy := y1 - y2
	d := dx*dx + dy*dy
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}
