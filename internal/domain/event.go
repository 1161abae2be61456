package domain

import (
	"time"
)

// ISO-8601 with millisecond precision, UTC.
const EventTimeLayout = "2006-01-02T15:04:05.000Z07:00"

type UserSnapshot struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type BookSnapshot struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// EnrichedOrderEvent는 주문 생성 후 알림 채널로 발행되는 메시지입니다.
// 스냅샷 필드는 조회 실패 시에도 빈 문자열로 항상 채워집니다.
type EnrichedOrderEvent struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	BookID    string       `json:"bookId"`
	Quantity  int          `json:"quantity"`
	CreatedAt string       `json:"createdAt"`
	User      UserSnapshot `json:"user"`
	Book      BookSnapshot `json:"book"`
}

// Enrichment holds the resolved display fields and, per lookup, the reason it degraded.
type Enrichment struct {
	User    UserSnapshot
	Book    BookSnapshot
	UserErr error
	BookErr error
}

func (e Enrichment) Degraded() bool {
	return e.UserErr != nil || e.BookErr != nil
}

func NewEnrichedOrderEvent(o *Order, e Enrichment) EnrichedOrderEvent {
	return EnrichedOrderEvent{
		ID:        o.ID,
		UserID:    o.UserID,
		BookID:    o.BookID,
		Quantity:  o.Quantity,
		CreatedAt: o.CreatedAt.UTC().Format(EventTimeLayout),
		User:      e.User,
		Book:      e.Book,
	}
}

// OrderedAt parses CreatedAt back into a time.
func (e EnrichedOrderEvent) OrderedAt() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.CreatedAt)
}

type EventStage string

const (
	StageCreated        EventStage = "created"
	StageEnriched       EventStage = "enriched"
	StagePublished      EventStage = "published"
	StageDelivered      EventStage = "delivered"
	StageDeliveryFailed EventStage = "delivery_failed"
)
