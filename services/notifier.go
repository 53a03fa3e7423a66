package services

import (
	"context"
	"log"
)

// Notifier delivers transition notices to users. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, event, requestID string)
}

// LogNotifier writes notices to the service log
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, userIDs []string, event, requestID string) {
	if len(userIDs) == 0 {
		return
	}
	log.Printf("📣 %s on %s -> %v", event, requestID, userIDs)
}
