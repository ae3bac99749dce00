package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// Notices is the partition for notifications, recent searches and
// triggered alerts.
type Notices struct {
	mu sync.RWMutex

	notifications *RingList[model.Notification]
	searches      *RingList[string]
	alerts        *RingList[model.TriggeredAlert]

	changes chan struct{}
}

// NewNotices creates an empty notices partition with the given list caps.
func NewNotices(notificationsCap, searchesCap, alertsCap int) *Notices {
	return &Notices{
		notifications: NewKeyedRingList(notificationsCap, func(n model.Notification) string { return n.ID }),
		searches:      NewKeyedRingList(searchesCap, func(s string) string { return s }),
		alerts:        NewKeyedRingList(alertsCap, func(a model.TriggeredAlert) string { return a.ID }),
		changes:       make(chan struct{}, 1),
	}
}

// Push mints a notification and inserts it at the front.
func (n *Notices) Push(level, title, body string) model.Notification {
	note := model.Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.notifications.PushFront(note)
	n.notifyChange()
	return note
}

// MarkRead marks one notification read. Unknown IDs are ignored.
func (n *Notices) MarkRead(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	ok := n.notifications.Update(id, func(note *model.Notification) {
		note.Read = true
	})
	if ok {
		n.notifyChange()
	}
	return ok
}

// MarkAllRead marks every notification read.
func (n *Notices) MarkAllRead() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.notifications.Range(func(note *model.Notification) {
		note.Read = true
	})
	n.notifyChange()
}

// UnreadCount returns the number of unread notifications.
func (n *Notices) UnreadCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	count := 0
	n.notifications.Range(func(note *model.Notification) {
		if !note.Read {
			count++
		}
	})
	return count
}

// Notifications returns the notification list, newest first.
func (n *Notices) Notifications() []model.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.notifications.Items()
}

// RecordSearch records a symbol search. An already-present symbol moves
// to the front without duplicating; the list length is unchanged.
func (n *Notices) RecordSearch(symbol string) {
	if symbol == "" {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.searches.PushFront(symbol)
	n.notifyChange()
}

// Searches returns recent searches, most recent first.
func (n *Notices) Searches() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.searches.Items()
}

// ApplyAlert records a triggered alert. A freshly-seen alert ID also
// produces a notification; redeliveries only re-front the alert entry, so
// at-least-once delivery never duplicates the notification.
func (n *Notices) ApplyAlert(alert model.TriggeredAlert) bool {
	if alert.ID == "" {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if alert.TriggeredAt.IsZero() {
		alert.TriggeredAt = time.Now().UTC()
	}
	fresh := n.alerts.PushFront(alert)
	if fresh {
		n.notifications.PushFront(model.Notification{
			ID:        uuid.NewString(),
			Level:     "warning",
			Title:     fmt.Sprintf("Alert: %s %s %.2f", alert.Symbol, alert.Rule, alert.Threshold),
			Body:      fmt.Sprintf("%s triggered at %.2f", alert.Symbol, alert.Price),
			CreatedAt: time.Now().UTC(),
		})
	}

	n.notifyChange()
	return fresh
}

// Alerts returns triggered alerts, newest first.
func (n *Notices) Alerts() []model.TriggeredAlert {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.alerts.Items()
}

// Changes returns the coalescing change signal channel.
func (n *Notices) Changes() <-chan struct{} {
	return n.changes
}

func (n *Notices) notifyChange() {
	select {
	case n.changes <- struct{}{}:
	default:
	}
}
