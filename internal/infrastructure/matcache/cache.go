// Package matcache реализует кэш материализации: мемоизацию дорогих чистых
// вычислений (производные изображений, эмбеддинги) с коалесцированием
// конкурентных запросов — не более одного вычисления на ключ одновременно.
package matcache

import (
	"context"
	"strings"
	"sync"

	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"golang.org/x/sync/singleflight"
)

// Result — материализованное значение: байты и расширение кодировки.
type Result struct {
	Data []byte
	Ext  string
}

// ComputeFunc — отложенное вычисление значения по ключу.
// Контекст вычисления отвязан от контекста вызывающего: отмена одного
// из ожидающих не прерывает общий полёт.
type ComputeFunc func(ctx context.Context) (*Result, error)

// Cache — потокобезопасный кэш с single-flight дисциплиной на ключ.
// Незакреплённые значения вытесняются по LRU в пределах байтового бюджета;
// закреплённые (оригиналы, эмбеддинги) живут до явной инвалидации.
type Cache struct {
	group    singleflight.Group
	mu       sync.Mutex
	index    *lruIndex
	pinned   map[string]*Result
	capacity int64
}

func NewCache(capacityBytes int64) *Cache {
	return &Cache{
		index:    newLRUIndex(),
		pinned:   make(map[string]*Result),
		capacity: capacityBytes,
	}
}

// GetOrCompute возвращает значение по ключу, при необходимости вычисляя его.
// Поздние вызовы с тем же ключом ожидают результат уже идущего вычисления.
// pin закрепляет значение: оно не участвует в LRU-вытеснении и не входит
// в байтовый бюджет.
func (c *Cache) GetOrCompute(ctx context.Context, key string, pin bool, compute ComputeFunc) (*Result, error) {
	const op = "Cache.GetOrCompute"

	if res, ok := c.lookup(key); ok {
		return res, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if res, ok := c.lookup(key); ok {
			return res, nil
		}

		// Вычисление живёт независимо от контекста инициатора.
		res, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		if err := c.store(key, pin, res); err != nil {
			return nil, err
		}

		return res, nil
	})

	select {
	case v := <-ch:
		if v.Err != nil {
			return nil, e.Wrap(op, v.Err)
		}
		return v.Val.(*Result), nil
	case <-ctx.Done():
		// Полёт продолжается ради остальных ожидающих, уходит только вызывающий.
		return nil, e.Wrap(op, ctx.Err())
	}
}

// Invalidate удаляет значение по точному ключу.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pinned, key)
	c.index.remove(key)
}

// InvalidatePrefix удаляет все значения, чьи ключи начинаются с prefix.
// Используется при каскадном удалении изображения и смене поколения коллекции.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.pinned {
		if strings.HasPrefix(key, prefix) {
			delete(c.pinned, key)
		}
	}
	c.index.removePrefix(prefix)
}

// UsedBytes возвращает объём незакреплённых значений в кэше.
func (c *Cache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.used
}

func (c *Cache) lookup(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.pinned[key]; ok {
		return res, true
	}

	return c.index.get(key)
}

// store помещает значение в кэш, при необходимости вытесняя давно
// не использованные незакреплённые значения в пределах бюджета.
func (c *Cache) store(key string, pin bool, res *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pin {
		c.pinned[key] = res
		return nil
	}

	size := int64(len(res.Data))
	if size > c.capacity {
		return e.Wrap(key, e.ErrCapacityExceeded)
	}

	for c.index.used+size > c.capacity {
		if !c.index.evictOldest() {
			return e.Wrap(key, e.ErrCapacityExceeded)
		}
	}

	c.index.put(key, res)
	return nil
}
