package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// notificationFeed is an append-only event list. It has no lock of its own;
// AbsenceRepository guards it together with the requests.
type notificationFeed struct {
	items []models.Notification
}

func (f *notificationFeed) append(now time.Time, notes ...models.Notification) {
	for _, n := range notes {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.Timestamp.IsZero() {
			n.Timestamp = now
		}
		f.items = append(f.items, n)
	}
}

func (f *notificationFeed) purgeActionable(requestID int64) int {
	kept := f.items[:0]
	removed := 0
	for _, n := range f.items {
		if n.Actionable(requestID) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	f.items = kept
	return removed
}

// remove deletes entry id. A non-empty recipient only matches entries
// addressed to that recipient.
func (f *notificationFeed) remove(id, recipient string) bool {
	for i, n := range f.items {
		if n.ID == id {
			if recipient != "" && (n.Recipient == nil || *n.Recipient != recipient) {
				return false
			}
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true
		}
	}
	return false
}

// list returns newest entries first. A recipient filter keeps broadcast
// entries plus those addressed to that recipient.
func (f *notificationFeed) list(filter models.NotificationFilter) []models.Notification {
	result := make([]models.Notification, 0, len(f.items))
	for i := len(f.items) - 1; i >= 0; i-- {
		n := f.items[i]
		if filter.Recipient != "" && n.Recipient != nil && *n.Recipient != filter.Recipient {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		result = append(result, n)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result
}
