package layout

import (
	"sort"
	"time"

	"github.com/jimlawless/whereami"

	"github.com/DRSN-tech/atlas-backend/internal/domain"
	"github.com/DRSN-tech/atlas-backend/pkg/e"
)

// Resolution — шаг временной гистограммы.
type Resolution int

const (
	ResHour Resolution = iota
	ResDay
	ResWeek
	ResMonth
	ResYear
)

var resolutionNames = map[Resolution]string{
	ResHour:  "hour",
	ResDay:   "day",
	ResWeek:  "week",
	ResMonth: "month",
	ResYear:  "year",
}

func (r Resolution) String() string {
	return resolutionNames[r]
}

func ParseResolution(s string) (Resolution, error) {
	for r, name := range resolutionNames {
		if name == s {
			return r, nil
		}
	}
	return 0, e.Wrap(whereami.WhereAmI(), e.ErrUnknownLayout)
}

// Bucket — одна корзина гистограммы: начало интервала и изображения в нём,
// упорядоченные по времени съёмки.
type Bucket struct {
	Start time.Time `json:"start"`
	IDs   []string  `json:"ids"`
}

// Timehist группирует изображения по времени съёмки с заданным шагом.
// Изображения без времени съёмки не попадают ни в одну корзину. Корзины
// идут в хронологическом порядке, пустые интервалы не создаются.
func Timehist(images []*domain.Image, res Resolution) []Bucket {
	type stamped struct {
		id string
		at time.Time
	}

	byStart := make(map[time.Time][]stamped)
	for _, img := range images {
		if img.Feature == nil || img.Feature.CapturedAt == nil {
			continue
		}
		at := img.Feature.CapturedAt.UTC()
		start := truncate(at, res)
		byStart[start] = append(byStart[start], stamped{id: img.ID, at: at})
	}

	buckets := make([]Bucket, 0, len(byStart))
	for start, members := range byStart {
		sort.Slice(members, func(a, b int) bool {
			if !members[a].at.Equal(members[b].at) {
				return members[a].at.Before(members[b].at)
			}
			return members[a].id < members[b].id
		})
		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.id
		}
		buckets = append(buckets, Bucket{Start: start, IDs: ids})
	}

	sort.Slice(buckets, func(a, b int) bool { return buckets[a].Start.Before(buckets[b].Start) })
	return buckets
}

// truncate обрезает момент времени до начала интервала гистограммы.
// Неделя начинается с понедельника.
func truncate(t time.Time, res Resolution) time.Time {
	switch res {
	case ResHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case ResDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case ResWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case ResMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
}
