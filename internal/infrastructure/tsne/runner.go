package tsne

import (
	"context"
	"errors"
	"sync"

	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
)

// Runner выполняет фоновые расчёты укладок с ограничением числа
// одновременных расчётов. Повторный запуск для той же коллекции
// отменяет предыдущий.
type Runner struct {
	sem chan struct{}
	log logger.Logger

	mu      sync.Mutex
	running map[string]*run
	closed  bool

	wg sync.WaitGroup
}

type run struct {
	cancel context.CancelFunc
}

func NewRunner(workers int, log logger.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		sem:     make(chan struct{}, workers),
		log:     log,
		running: make(map[string]*run),
	}
}

// Launch запускает расчёт для коллекции в фоне. Уже идущий расчёт
// той же коллекции отменяется: его результат устарел бы к моменту записи.
// job вызывается всегда, даже если запуск отменён ещё в очереди или
// пул закрыт: в этих случаях job получает уже отменённый контекст
// и обязан быстро вернуть отказ ожидающим результата.
func (r *Runner) Launch(collectionID string, job func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		go r.runJob(ctx, collectionID, job)
		return
	}
	if prev, ok := r.running[collectionID]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cur := &run{cancel: cancel}
	r.running[collectionID] = cur
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.release(collectionID, cur)

		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			// места в пуле не дождались; job всё равно вызывается
			// ниже с отменённым контекстом
		}

		r.runJob(ctx, collectionID, job)
	}()
}

func (r *Runner) runJob(ctx context.Context, collectionID string, job func(ctx context.Context) error) {
	if err := job(ctx); err != nil {
		if errors.Is(err, e.ErrCancelled) || errors.Is(err, context.Canceled) {
			r.log.Infof("расчёт укладки коллекции %s отменён", collectionID)
			return
		}
		r.log.Errorf(err, "расчёт укладки коллекции %s завершился ошибкой", collectionID)
	}
}

// Cancel отменяет идущий расчёт коллекции, если он есть.
func (r *Runner) Cancel(collectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.running[collectionID]; ok {
		cur.cancel()
		delete(r.running, collectionID)
	}
}

// Close отменяет все расчёты и дожидается завершения горутин.
func (r *Runner) Close() error {
	r.mu.Lock()
	r.closed = true
	for _, cur := range r.running {
		cur.cancel()
	}
	r.running = make(map[string]*run)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

// release снимает регистрацию расчёта, если её не заменил более новый запуск.
func (r *Runner) release(collectionID string, own *run) {
	own.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.running[collectionID]; ok && cur == own {
		delete(r.running, collectionID)
	}
}
