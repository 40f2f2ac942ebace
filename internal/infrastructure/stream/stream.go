package stream

import (
	"context"
	"time"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
)

// Conn — минимальный интерфейс соединения с клиентом. Позволяет тестировать
// сессию без реального веб-сокета.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	WriteBinary(data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Entry — элемент текущей укладки коллекции.
type Entry struct {
	ID string
	Pt domain.Point
}

// Source отдаёт сессии данные: укладку коллекции и байты миниатюр.
// Миниатюры тянутся через кэш материализации, поэтому параллельные сессии
// с одинаковыми окнами делят одно вычисление.
type Source interface {
	Entries(ctx context.Context, collectionID string) ([]Entry, error)
	Derivative(ctx context.Context, imageID string, width, height int) (data []byte, ext string, err error)
}

// Сообщения клиента.
const (
	msgView   = "view"
	msgCredit = "credit"
)

// ClientMsg — входящее сообщение: запрос окна просмотра либо пополнение
// кредитов.
type ClientMsg struct {
	Type       string       `json:"type"`
	Collection string       `json:"collection,omitempty"`
	Center     domain.Point `json:"center,omitempty"`
	IconW      int          `json:"icon_w,omitempty"`
	IconH      int          `json:"icon_h,omitempty"`
	Limit      int          `json:"limit,omitempty"`
	Credits    int          `json:"credits,omitempty"`
	N          int          `json:"n,omitempty"`
}

// Header — заголовочный кадр перед бинарным кадром миниатюры.
type Header struct {
	ID  string  `json:"id"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	W   int     `json:"w"`
	H   int     `json:"h"`
	Ext string  `json:"ext"`
	N   int     `json:"n"`
}
