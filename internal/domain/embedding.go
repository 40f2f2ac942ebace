package domain

import "time"

// Point — нормированная 2D-координата изображения в раскладке, в [0,1]².
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Embedding — одно опубликованное поколение 2D-раскладки коллекции.
// Карта координат заменяется целиком, частичных обновлений не бывает.
type Embedding struct {
	CollectionID string
	Generation   int64
	Seed         int64
	Points       map[string]Point // image id -> координата
	Excluded     []string         // изображения без вектора признаков
	CreatedAt    time.Time
}

func NewEmbedding(collectionID string, generation int64, seed int64, points map[string]Point, excluded []string) *Embedding {
	return &Embedding{
		CollectionID: collectionID,
		Generation:   generation,
		Seed:         seed,
		Points:       points,
		Excluded:     excluded,
	}
}
