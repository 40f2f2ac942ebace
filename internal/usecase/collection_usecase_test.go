package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/atlas-backend/internal/cfg"
	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/matcache"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne"
	"github.com/DRSN-tech/atlas-backend/internal/infrastructure/tsne/dist"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
)

// stubTx подменяет pgx.Tx в транзакционных сценариях: фиксация и откат
// всегда успешны, остальные методы не вызываются.
type stubTx struct{ pgx.Tx }

func (stubTx) Commit(ctx context.Context) error   { return nil }
func (stubTx) Rollback(ctx context.Context) error { return nil }

type stubPool struct{}

func (stubPool) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return stubTx{}, nil
}

type mockCollectionRepo struct {
	collections map[string]*domain.Collection
	staleMarks  map[string]bool
}

func newMockCollectionRepo(collections ...*domain.Collection) *mockCollectionRepo {
	m := &mockCollectionRepo{
		collections: make(map[string]*domain.Collection),
		staleMarks:  make(map[string]bool),
	}
	for _, c := range collections {
		m.collections[c.ID] = c
	}
	return m
}

func (m *mockCollectionRepo) Create(ctx context.Context, c *domain.Collection) (*domain.Collection, error) {
	created := *c
	created.ID = "coll-" + c.Name
	created.CreatedAt = time.Now()
	m.collections[created.ID] = &created
	return &created, nil
}

func (m *mockCollectionRepo) Get(ctx context.Context, id string) (*domain.Collection, error) {
	c, ok := m.collections[id]
	if !ok {
		return nil, e.ErrNotFound
	}
	return c, nil
}

func (m *mockCollectionRepo) List(ctx context.Context) ([]*domain.Collection, error) {
	out := make([]*domain.Collection, 0, len(m.collections))
	for _, c := range m.collections {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCollectionRepo) PublishGeneration(ctx context.Context, id string, generation int64) error {
	c := m.collections[id]
	c.Finalized = true
	c.Generation = generation
	c.EmbeddingStale = false
	return nil
}

func (m *mockCollectionRepo) MarkStale(ctx context.Context, id string, stale bool) error {
	m.staleMarks[id] = stale
	m.collections[id].EmbeddingStale = stale
	return nil
}

type mockImageRepo struct {
	images map[string][]*domain.Image
}

func (m *mockImageRepo) Create(ctx context.Context, img *domain.Image) (*domain.Image, error) {
	m.images[img.CollectionID] = append(m.images[img.CollectionID], img)
	return img, nil
}

func (m *mockImageRepo) Get(ctx context.Context, id string) (*domain.Image, error) {
	for _, imgs := range m.images {
		for _, img := range imgs {
			if img.ID == id {
				return img, nil
			}
		}
	}
	return nil, e.ErrNotFound
}

func (m *mockImageRepo) ListByCollection(ctx context.Context, collectionID string) ([]*domain.Image, error) {
	return m.images[collectionID], nil
}

func (m *mockImageRepo) Delete(ctx context.Context, id string) error { return nil }

type mockEmbeddingRepo struct {
	embeddings map[string]*domain.Embedding // collection id -> последнее поколение
}

func (m *mockEmbeddingRepo) Create(ctx context.Context, emb *domain.Embedding) (*domain.Embedding, error) {
	m.embeddings[emb.CollectionID] = emb
	return emb, nil
}

func (m *mockEmbeddingRepo) GetByGeneration(ctx context.Context, collectionID string, generation int64) (*domain.Embedding, error) {
	emb, ok := m.embeddings[collectionID]
	if !ok || emb.Generation != generation {
		return nil, e.ErrNotFound
	}
	return emb, nil
}

// passthroughCache выполняет compute напрямую, запоминая инвалидации.
type passthroughCache struct {
	invalidatedPrefixes []string
}

func (p *passthroughCache) GetOrCompute(ctx context.Context, key string, pin bool, compute matcache.ComputeFunc) (*matcache.Result, error) {
	return compute(ctx)
}

func (p *passthroughCache) Invalidate(key string) {}

func (p *passthroughCache) InvalidatePrefix(prefix string) {
	p.invalidatedPrefixes = append(p.invalidatedPrefixes, prefix)
}

type mockRunner struct {
	launched  []string
	cancelled []string
}

func (m *mockRunner) Launch(collectionID string, job func(ctx context.Context) error) {
	m.launched = append(m.launched, collectionID)
	_ = job(context.Background())
}

func (m *mockRunner) Cancel(collectionID string) {
	m.cancelled = append(m.cancelled, collectionID)
}

// cancelledRunner воспроизводит запуск, отменённый ещё в очереди пула:
// job вызывается с уже отменённым контекстом.
type cancelledRunner struct{}

func (cancelledRunner) Launch(collectionID string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = job(ctx)
}

func (cancelledRunner) Cancel(string) {}

type mockEngine struct {
	mu      sync.Mutex
	calls   int
	err     error
	entered chan struct{}
	release chan struct{}
}

func (m *mockEngine) Embed(ctx context.Context, inputs []tsne.Input, seed int64, p tsne.Params, metric dist.Metric) (map[string]domain.Point, []string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, nil, m.err
	}

	points := make(map[string]domain.Point, len(inputs))
	var excluded []string
	for _, in := range inputs {
		if in.Feature == nil {
			excluded = append(excluded, in.ID)
			continue
		}
		points[in.ID] = domain.Point{X: 0.5, Y: 0.5}
	}
	return points, excluded, nil
}

func (m *mockEngine) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockOutboxRepo struct {
	mu     sync.Mutex
	events []*OutboxEvent
}

func (m *mockOutboxRepo) Create(ctx context.Context, ev *OutboxEvent) (*OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *mockOutboxRepo) GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	return nil, nil
}

func (m *mockOutboxRepo) MarkAsProcessed(ctx context.Context, id int64) error { return nil }

func (m *mockOutboxRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		types = append(types, ev.EventType)
	}
	return types
}

type collectionFixture struct {
	uc       *CollectionUseCase
	collRepo *mockCollectionRepo
	imgRepo  *mockImageRepo
	embRepo  *mockEmbeddingRepo
	outbox   *mockOutboxRepo
	engine   *mockEngine
	cache    *passthroughCache
	runner   *mockRunner
}

func newCollectionFixture(collections ...*domain.Collection) *collectionFixture {
	f := &collectionFixture{
		collRepo: newMockCollectionRepo(collections...),
		imgRepo:  &mockImageRepo{images: make(map[string][]*domain.Image)},
		embRepo:  &mockEmbeddingRepo{embeddings: make(map[string]*domain.Embedding)},
		outbox:   &mockOutboxRepo{},
		engine:   &mockEngine{},
		cache:    &passthroughCache{},
		runner:   &mockRunner{},
	}
	f.build(f.collRepo, f.runner)
	return f
}

// build пересобирает usecase с подменёнными зависимостями.
func (f *collectionFixture) build(collRepo CollectionRepository, runner EmbeddingRunner) {
	tsneCfg := &cfg.TsneCfg{Perplexity: 5, Iterations: 100, LearningRate: 200, Theta: 0.5, Workers: 1}
	f.uc = NewCollectionUC(collRepo, f.imgRepo, f.embRepo, f.outbox, stubPool{}, f.engine, runner, f.cache, tsneCfg, logger.NewSlogLogger())
}

func featured(id string, swatches ...domain.Swatch) *domain.Image {
	return &domain.Image{
		ID:      id,
		Feature: &domain.FeatureVector{Palette: swatches, Width: 100, Height: 100},
	}
}

func TestCreate_RequiresName(t *testing.T) {
	f := newCollectionFixture()

	for _, name := range []string{"", "   "} {
		_, err := f.uc.Create(context.Background(), &CreateCollectionReq{Name: name})
		require.ErrorIs(t, err, e.ErrCollectionNameRequired)
	}
}

func TestCreate_NewCollectionIsDraft(t *testing.T) {
	f := newCollectionFixture()

	info, err := f.uc.Create(context.Background(), &CreateCollectionReq{Name: "vacation"})
	require.NoError(t, err)

	assert.Equal(t, "vacation", info.Name)
	assert.False(t, info.Finalized)
	assert.Zero(t, info.Generation)
}

func TestFinalize_IdempotentRepeat(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1", Finalized: true, Generation: 3})

	res, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "c1"})
	require.NoError(t, err)

	assert.True(t, res.NoChanges)
	assert.Equal(t, int64(3), res.Generation)
	assert.Empty(t, f.runner.launched)
}

func TestFinalize_UnknownMetric(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})

	_, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "c1", Metric: "manhattan"})
	require.ErrorIs(t, err, e.ErrUnknownMetric)
}

func TestFinalize_NotFound(t *testing.T) {
	f := newCollectionFixture()

	_, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "missing"})
	require.ErrorIs(t, err, e.ErrNotFound)
}

func TestInvalidate_RequiresFinalized(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})

	err := f.uc.Invalidate(context.Background(), "c1")
	require.ErrorIs(t, err, e.ErrNotFinalized)
}

func TestInvalidate_MarksStaleAndCancelsRun(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1", Finalized: true, Generation: 2})

	require.NoError(t, f.uc.Invalidate(context.Background(), "c1"))

	assert.True(t, f.collRepo.staleMarks["c1"])
	assert.Equal(t, []string{"c1"}, f.runner.cancelled)
	require.Len(t, f.cache.invalidatedPrefixes, 1)
	assert.Contains(t, f.cache.invalidatedPrefixes[0], "c1")
}

func TestLayout_MapNotFinalized(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})

	_, err := f.uc.Layout(context.Background(), &LayoutReq{CollectionID: "c1", Mode: LayoutMap})
	require.ErrorIs(t, err, e.ErrNotFinalized)
}

func TestLayout_MapReturnsPublishedGeneration(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1", Finalized: true, Generation: 2})
	points := map[string]domain.Point{"img-a": {X: 0.1, Y: 0.9}}
	f.embRepo.embeddings["c1"] = domain.NewEmbedding("c1", 2, 42, points, []string{"img-b"})

	res, err := f.uc.Layout(context.Background(), &LayoutReq{CollectionID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, LayoutMap, res.Mode)
	assert.Equal(t, int64(2), res.Generation)
	assert.Equal(t, points, res.Points)
	assert.Equal(t, []string{"img-b"}, res.Excluded)
}

func TestLayout_SortByLuminance(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})
	f.imgRepo.images["c1"] = []*domain.Image{
		featured("bright", domain.Swatch{R: 250, G: 250, B: 250}),
		featured("dark", domain.Swatch{R: 5, G: 5, B: 5}),
		featured("mid", domain.Swatch{R: 120, G: 120, B: 120}),
	}

	res, err := f.uc.Layout(context.Background(), &LayoutReq{CollectionID: "c1", Mode: LayoutSort})
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	assert.Equal(t, "dark", res.Entries[0].ID)
	assert.Equal(t, "mid", res.Entries[1].ID)
	assert.Equal(t, "bright", res.Entries[2].ID)
}

func TestLayout_SortComparedTo(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})
	ref := featured("ref", domain.Swatch{R: 200, G: 0, B: 0})
	f.imgRepo.images["c1"] = []*domain.Image{
		featured("far", domain.Swatch{R: 0, G: 0, B: 200}),
		featured("near", domain.Swatch{R: 190, G: 0, B: 0}),
		ref,
	}

	res, err := f.uc.Layout(context.Background(), &LayoutReq{CollectionID: "c1", Mode: LayoutSort, ComparedTo: "ref"})
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	assert.Equal(t, "ref", res.Entries[0].ID)
	assert.Equal(t, "near", res.Entries[1].ID)
	assert.Equal(t, "far", res.Entries[2].ID)
}

func TestLayout_Timehist(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})

	day1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	withTime := func(id string, ts time.Time) *domain.Image {
		img := featured(id, domain.Swatch{R: 10, G: 10, B: 10})
		img.Feature.CapturedAt = &ts
		return img
	}
	f.imgRepo.images["c1"] = []*domain.Image{
		withTime("b", day2),
		withTime("a", day1),
		featured("no-time", domain.Swatch{R: 1, G: 2, B: 3}),
	}

	res, err := f.uc.Layout(context.Background(), &LayoutReq{CollectionID: "c1", Mode: LayoutTimehist, Resolution: "day"})
	require.NoError(t, err)

	require.Len(t, res.Buckets, 2)
	assert.Equal(t, []string{"a"}, res.Buckets[0].IDs)
	assert.Equal(t, []string{"b"}, res.Buckets[1].IDs)
}

func TestLayout_UnknownMode(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})

	_, err := f.uc.Layout(context.Background(), &LayoutReq{CollectionID: "c1", Mode: "spiral"})
	require.ErrorIs(t, err, e.ErrUnknownLayout)
}

func TestLayout_MapRequireFreshRejectsStale(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1", Finalized: true, Generation: 2, EmbeddingStale: true})
	f.embRepo.embeddings["c1"] = domain.NewEmbedding("c1", 2, 1, map[string]domain.Point{"a": {X: 0.2, Y: 0.3}}, nil)

	// устаревшая укладка по умолчанию остаётся пригодной для выдачи
	res, err := f.uc.Layout(context.Background(), &LayoutReq{CollectionID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Generation)

	_, err = f.uc.Layout(context.Background(), &LayoutReq{CollectionID: "c1", RequireFresh: true})
	require.ErrorIs(t, err, e.ErrEmbeddingStale)
}

func TestFinalize_PublishesGeneration(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})
	f.imgRepo.images["c1"] = []*domain.Image{
		featured("a", domain.Swatch{R: 10, G: 20, B: 30}),
		featured("b", domain.Swatch{R: 200, G: 100, B: 50}),
		{ID: "c"}, // без признаков, попадает в excluded
	}

	seed := int64(42)
	res, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "c1", Seed: &seed})
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Generation)
	assert.Equal(t, int64(42), res.Seed)
	assert.Equal(t, []string{"c"}, res.Excluded)

	coll := f.collRepo.collections["c1"]
	assert.True(t, coll.Finalized)
	assert.Equal(t, int64(1), coll.Generation)
	assert.False(t, coll.EmbeddingStale)

	emb := f.embRepo.embeddings["c1"]
	require.NotNil(t, emb)
	assert.Equal(t, int64(1), emb.Generation)
	assert.Len(t, emb.Points, 2)

	assert.Equal(t, []string{EventCollectionFinalized}, f.outbox.eventTypes())
	require.Len(t, f.cache.invalidatedPrefixes, 1)
	assert.Contains(t, f.cache.invalidatedPrefixes[0], "c1")
}

func TestFinalize_InsufficientDataLeavesState(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})
	f.engine.err = e.ErrInsufficientData

	_, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "c1"})
	require.ErrorIs(t, err, e.ErrInsufficientData)

	coll := f.collRepo.collections["c1"]
	assert.False(t, coll.Finalized)
	assert.Zero(t, coll.Generation)
	assert.Empty(t, f.embRepo.embeddings)
	assert.Empty(t, f.outbox.eventTypes())
}

func TestFinalize_SeedWithoutForceRejected(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1", Finalized: true, Generation: 2})

	seed := int64(7)
	_, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "c1", Seed: &seed})
	require.ErrorIs(t, err, e.ErrAlreadyFinalized)

	// без зерна повтор остаётся идемпотентным
	res, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "c1"})
	require.NoError(t, err)
	assert.True(t, res.NoChanges)
}

func TestFinalize_ConcurrentCallsCoalesce(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})
	f.imgRepo.images["c1"] = []*domain.Image{
		featured("a", domain.Swatch{R: 1, G: 2, B: 3}),
		featured("b", domain.Swatch{R: 4, G: 5, B: 6}),
	}
	f.engine.entered = make(chan struct{}, 2)
	f.engine.release = make(chan struct{})

	type out struct {
		res *FinalizeRes
		err error
	}
	results := make(chan out, 2)
	finalize := func() {
		go func() {
			res, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "c1", Force: true})
			results <- out{res: res, err: err}
		}()
	}

	finalize()
	<-f.engine.entered
	finalize()
	// второй вызов успевает присоединиться к идущему полёту
	time.Sleep(50 * time.Millisecond)
	close(f.engine.release)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)

	assert.Equal(t, 1, f.engine.callCount())
	assert.Equal(t, first.res.Generation, second.res.Generation)
}

func TestFinalize_CancelledQueuedRunReturnsCancelled(t *testing.T) {
	f := newCollectionFixture(&domain.Collection{ID: "c1"})
	f.build(f.collRepo, cancelledRunner{})

	done := make(chan error, 1)
	go func() {
		_, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "c1", Force: true})
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, e.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("Finalize did not return after its run was cancelled in the queue")
	}

	assert.Zero(t, f.engine.callCount())
	coll := f.collRepo.collections["c1"]
	assert.False(t, coll.Finalized)
}

// staleFirstReadRepo отдаёт первому чтению устаревший снимок коллекции,
// имитируя публикацию нового поколения между внешней проверкой и полётом.
type staleFirstReadRepo struct {
	*mockCollectionRepo
	first int32
}

func (r *staleFirstReadRepo) Get(ctx context.Context, id string) (*domain.Collection, error) {
	c, err := r.mockCollectionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if atomic.CompareAndSwapInt32(&r.first, 0, 1) {
		stale := *c
		stale.Generation = 0
		return &stale, nil
	}
	return c, nil
}

func TestFinalize_GenerationFromFreshRead(t *testing.T) {
	f := newCollectionFixture()
	repo := &staleFirstReadRepo{
		mockCollectionRepo: newMockCollectionRepo(
			&domain.Collection{ID: "c1", Finalized: true, Generation: 3, EmbeddingStale: true},
		),
	}
	f.build(repo, f.runner)

	res, err := f.uc.Finalize(context.Background(), &FinalizeReq{CollectionID: "c1", Force: true})
	require.NoError(t, err)

	// поколение выводится из свежего чтения внутри полёта, не из снимка
	assert.Equal(t, int64(4), res.Generation)
	assert.Equal(t, int64(4), f.embRepo.embeddings["c1"].Generation)
}
