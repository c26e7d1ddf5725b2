package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Notification channels used to fan out run lifecycle events.
const (
	ChannelRunCompleted = "mse_run_completed"
	ChannelRunFlagged   = "mse_run_flagged"
)

// Listen subscribes the dedicated notify connection to channel,
// reconnecting first if the connection has dropped.
func (db *DB) Listen(ctx context.Context, channel string) error {
	db.notifyMu.Lock()
	defer db.notifyMu.Unlock()

	if db.notifyConn == nil {
		if err := db.reconnectNotify(ctx); err != nil {
			return err
		}
	}

	if _, err := db.notifyConn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("storage: listen %s: %w", channel, err)
	}
	db.listenChannels = append(db.listenChannels, channel)
	return nil
}

// WaitForNotification blocks until a notification arrives on any
// subscribed channel, or ctx is done. On connection error it attempts
// one reconnect before giving up.
func (db *DB) WaitForNotification(ctx context.Context) (channel, payload string, err error) {
	db.notifyMu.Lock()
	conn := db.notifyConn
	db.notifyMu.Unlock()

	if conn == nil {
		return "", "", fmt.Errorf("storage: no notify connection configured")
	}

	notification, err := conn.WaitForNotification(ctx)
	if err != nil {
		db.notifyMu.Lock()
		rerr := db.reconnectNotify(ctx)
		db.notifyMu.Unlock()
		if rerr != nil {
			return "", "", fmt.Errorf("storage: wait for notification: %w (reconnect: %v)", err, rerr)
		}
		return "", "", fmt.Errorf("storage: wait for notification: %w", err)
	}
	return notification.Channel, notification.Payload, nil
}

// Notify publishes payload on channel via pg_notify.
func (db *DB) Notify(ctx context.Context, channel, payload string) error {
	_, err := db.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	if err != nil {
		return fmt.Errorf("storage: notify %s: %w", channel, err)
	}
	return nil
}
