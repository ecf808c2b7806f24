package store

import "context"

const createNotification = `
INSERT INTO notifications (id, user_id, message, created_at)
VALUES (?, ?, ?, ?)
`

// CreateNotification は未読の通知を作成する。CreatedAt は呼び出し側で設定すること。
func (q *Queries) CreateNotification(ctx context.Context, n Notification) error {
	_, err := q.db.ExecContext(ctx, createNotification, n.ID, n.UserID, n.Message, FormatTime(n.CreatedAt))
	return err
}

const notificationColumns = `id, user_id, message, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var (
		n      Notification
		isRead int64
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Message, &isRead, &n.CreatedAt); err != nil {
		return Notification{}, err
	}
	n.IsRead = isRead != 0
	return n, nil
}

func (q *Queries) listNotifications(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

const getNotificationByID = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

// GetNotificationByID はIDで通知を取得する。存在しない場合は sql.ErrNoRows を返す。
func (q *Queries) GetNotificationByID(ctx context.Context, id string) (Notification, error) {
	return scanNotification(q.db.QueryRowContext(ctx, getNotificationByID, id))
}

const listNotificationsByUserID = `SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, rowid DESC`

// ListNotificationsByUserID はユーザーの通知を新しい順に返す。
func (q *Queries) ListNotificationsByUserID(ctx context.Context, userID string) ([]Notification, error) {
	return q.listNotifications(ctx, listNotificationsByUserID, userID)
}

const listUnreadNotifications = `SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id = ? AND is_read = 0
ORDER BY created_at DESC, rowid DESC`

// ListUnreadNotifications はユーザーの未読通知を新しい順に返す。
func (q *Queries) ListUnreadNotifications(ctx context.Context, userID string) ([]Notification, error) {
	return q.listNotifications(ctx, listUnreadNotifications, userID)
}

const markAsRead = `UPDATE notifications SET is_read = 1 WHERE id = ?`

// MarkAsRead は通知を既読にする。
func (q *Queries) MarkAsRead(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markAsRead, id)
	return err
}

const markAllAsRead = `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`

// MarkAllAsRead はユーザーの全通知を既読にする。
func (q *Queries) MarkAllAsRead(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, markAllAsRead, userID)
	return err
}
