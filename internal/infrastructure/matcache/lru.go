package matcache

import (
	"container/list"
	"strings"
)

// lruEntry — элемент списка давности использования.
type lruEntry struct {
	key string
	res *Result
}

// lruIndex — байтовый LRU-индекс незакреплённых значений.
// Не потокобезопасен, синхронизация лежит на Cache.
type lruIndex struct {
	order *list.List               // front — самый свежий
	items map[string]*list.Element // key -> элемент списка
	used  int64
}

func newLRUIndex() *lruIndex {
	return &lruIndex{
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// get возвращает значение и помечает его самым свежим.
func (l *lruIndex) get(key string) (*Result, bool) {
	el, ok := l.items[key]
	if !ok {
		return nil, false
	}

	l.order.MoveToFront(el)
	return el.Value.(*lruEntry).res, true
}

// put добавляет значение; существующий ключ перезаписывается.
func (l *lruIndex) put(key string, res *Result) {
	if el, ok := l.items[key]; ok {
		entry := el.Value.(*lruEntry)
		l.used += int64(len(res.Data)) - int64(len(entry.res.Data))
		entry.res = res
		l.order.MoveToFront(el)
		return
	}

	el := l.order.PushFront(&lruEntry{key: key, res: res})
	l.items[key] = el
	l.used += int64(len(res.Data))
}

// evictOldest вытесняет самое давнее значение.
// Возвращает false, если вытеснять нечего.
func (l *lruIndex) evictOldest() bool {
	el := l.order.Back()
	if el == nil {
		return false
	}

	entry := el.Value.(*lruEntry)
	l.order.Remove(el)
	delete(l.items, entry.key)
	l.used -= int64(len(entry.res.Data))
	return true
}

func (l *lruIndex) remove(key string) {
	el, ok := l.items[key]
	if !ok {
		return
	}

	entry := el.Value.(*lruEntry)
	l.order.Remove(el)
	delete(l.items, key)
	l.used -= int64(len(entry.res.Data))
}

func (l *lruIndex) removePrefix(prefix string) {
	for key := range l.items {
		if strings.HasPrefix(key, prefix) {
			l.remove(key)
		}
	}
}
