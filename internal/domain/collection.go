package domain

import "time"

// Collection описывает коллекцию изображений.
// Членство мутируемо только до финализации; изменение состава
// финализированной коллекции помечает эмбеддинг устаревшим.
type Collection struct {
	ID             string // uuid
	Name           string
	Finalized      bool
	Generation     int64 // номер текущего поколения эмбеддинга, 0 — эмбеддинга нет
	EmbeddingStale bool  // членство изменилось после последнего вычисления
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

func NewCollection(name string) *Collection {
	return &Collection{
		Name: name,
	}
}

// HasEmbedding сообщает, опубликовано ли хотя бы одно поколение эмбеддинга.
func (c *Collection) HasEmbedding() bool {
	return c.Finalized && c.Generation > 0
}
