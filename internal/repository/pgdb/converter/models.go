package converter

import "time"

// CollectionModel представляет запись таблицы collections в PostgreSQL.
type CollectionModel struct {
	ID             string     `db:"id"`
	Name           string     `db:"name"`
	Finalized      bool       `db:"finalized"`
	Generation     int64      `db:"generation"`
	EmbeddingStale bool       `db:"embedding_stale"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at"`
}

// ImageModel представляет запись таблицы images в PostgreSQL.
// Вектор признаков и EXIF-теги хранятся как JSONB.
type ImageModel struct {
	ID           string    `db:"id"`
	CollectionID string    `db:"collection_id"`
	Name         string    `db:"name"`
	Width        int       `db:"width"`
	Height       int       `db:"height"`
	Feature      []byte    `db:"feature"`  // NULL, если признаки не извлечены
	Metadata     []byte    `db:"metadata"` // NULL, если EXIF отсутствует
	CreatedAt    time.Time `db:"created_at"`
}

// DerivativeModel представляет запись таблицы derivatives в PostgreSQL.
// Байты производной живут в MinIO, здесь только составной ключ и кодировка.
type DerivativeModel struct {
	ImageID   string    `db:"image_id"`
	Width     int       `db:"width"`
	Height    int       `db:"height"`
	Kind      int       `db:"kind"`
	Extension string    `db:"extension"`
	CreatedAt time.Time `db:"created_at"`
}

// EmbeddingModel представляет запись таблицы embeddings в PostgreSQL.
// Координаты точек и список исключённых хранятся как JSONB.
type EmbeddingModel struct {
	CollectionID string    `db:"collection_id"`
	Generation   int64     `db:"generation"`
	Seed         int64     `db:"seed"`
	Points       []byte    `db:"points"`
	Excluded     []byte    `db:"excluded"`
	CreatedAt    time.Time `db:"created_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID           int64      `db:"id"`
	EventID      string     `db:"event_id"`
	EventType    string     `db:"event_type"`
	CollectionID string     `db:"collection_id"`
	Payload      []byte     `db:"payload"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at"`
}
