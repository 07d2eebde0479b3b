// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/store"
)

// Store keeps every entity in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an open pool. The schema must already be ensured.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() { s.pool.Close() }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// ===== users =====

const userColumns = `id, name, surname, phone, email, password_hash, role, balance, rating, rating_count,
    skills, hourly_rate, completed_jobs, is_online, lat, lng, avatar_url, bio, is_banned, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u        domain.User
		role     string
		lat, lng *float64
	)
	err := row.Scan(&u.ID, &u.Name, &u.Surname, &u.Phone, &u.Email, &u.PasswordHash, &role, &u.Balance,
		&u.Rating, &u.RatingCount, &u.Skills, &u.HourlyRate, &u.CompletedJobs, &u.IsOnline, &lat, &lng,
		&u.AvatarURL, &u.Bio, &u.IsBanned, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	if lat != nil && lng != nil {
		u.Location = &domain.Location{Lat: *lat, Lng: *lng}
	}
	if len(u.Skills) == 0 {
		u.Skills = nil
	}
	return u, nil
}

func splitLocation(l *domain.Location) (lat, lng *float64) {
	if l == nil {
		return nil, nil
	}
	return &l.Lat, &l.Lng
}

func skillsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	lat, lng := splitLocation(u.Location)
	_, err := s.pool.Exec(ctx, `
        INSERT INTO users (id, name, surname, phone, email, password_hash, role, balance, rating, rating_count,
            skills, hourly_rate, completed_jobs, is_online, lat, lng, avatar_url, bio, is_banned, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		u.ID, u.Name, u.Surname, u.Phone, u.Email, u.PasswordHash, string(u.Role), u.Balance, u.Rating, u.RatingCount,
		skillsOrEmpty(u.Skills), u.HourlyRate, u.CompletedJobs, u.IsOnline, lat, lng, u.AvatarURL, u.Bio, u.IsBanned,
		u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE ($1 = '' OR role = $1) ORDER BY created_at ASC`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	lat, lng := splitLocation(u.Location)
	updated, err := scanUser(s.pool.QueryRow(ctx, `
        UPDATE users
        SET name = $2, surname = $3, phone = $4, email = $5, skills = $6, hourly_rate = $7,
            lat = $8, lng = $9, avatar_url = $10, bio = $11,
            password_hash = COALESCE(NULLIF($12, ''), password_hash), updated_at = $13
        WHERE id = $1
        RETURNING `+userColumns,
		u.ID, u.Name, u.Surname, u.Phone, u.Email, skillsOrEmpty(u.Skills), u.HourlyRate,
		lat, lng, u.AvatarURL, u.Bio, u.PasswordHash, u.UpdatedAt))
	if isUniqueViolation(err) {
		return domain.User{}, domain.ErrConflict
	}
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return updated, nil
}

func (s *Store) SetOnline(ctx context.Context, id string, online bool) (domain.User, error) {
	return s.setUserColumn(ctx, "is_online", id, online)
}

func (s *Store) SetBanned(ctx context.Context, id string, banned bool) (domain.User, error) {
	return s.setUserColumn(ctx, "is_banned", id, banned)
}

func (s *Store) SetRole(ctx context.Context, id string, role domain.Role) (domain.User, error) {
	return s.setUserColumn(ctx, "role", id, string(role))
}

// setUserColumn is only called with the fixed column names above.
func (s *Store) setUserColumn(ctx context.Context, column, id string, value any) (domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET `+column+` = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, value))
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

// ===== orders =====

const orderColumns = `id, customer_id, COALESCE(worker_id, ''), title, description, category, price, location, lat, lng,
    status, created_at, accepted_at, started_at, completed_at, cancelled_at, review_rating, review_comment, review_created_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o             domain.Order
		status        string
		lat, lng      *float64
		rating        *int
		comment       *string
		reviewCreated *time.Time
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.WorkerID, &o.Title, &o.Description, &o.Category, &o.Price, &o.Location,
		&lat, &lng, &status, &o.CreatedAt, &o.AcceptedAt, &o.StartedAt, &o.CompletedAt, &o.CancelledAt,
		&rating, &comment, &reviewCreated)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	if lat != nil && lng != nil {
		o.Coordinates = &domain.Location{Lat: *lat, Lng: *lng}
	}
	if rating != nil {
		r := domain.Review{Rating: *rating}
		if comment != nil {
			r.Comment = *comment
		}
		if reviewCreated != nil {
			r.CreatedAt = *reviewCreated
		}
		o.Review = &r
	}
	return o, nil
}

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) error {
	lat, lng := splitLocation(o.Coordinates)
	_, err := s.pool.Exec(ctx, `
        INSERT INTO orders (id, customer_id, title, description, category, price, location, lat, lng, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.CustomerID, o.Title, o.Description, o.Category, o.Price, o.Location, lat, lng, string(o.Status), o.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return domain.Order{}, notFound(err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+orderColumns+` FROM orders
        WHERE ($1 = '' OR customer_id = $1)
          AND ($2 = '' OR worker_id = $2)
          AND ($3 = '' OR customer_id = $3 OR worker_id = $3)
          AND ($4 = '' OR status = $4)
          AND ($5 = '' OR category = $5)
        ORDER BY created_at DESC`,
		f.CustomerID, f.WorkerID, f.Participant, string(f.Status), f.Category)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) UpdateOrder(ctx context.Context, id string, p domain.OrderPatch) (domain.Order, error) {
	var hasCoords bool
	var lat, lng *float64
	if p.Coordinates != nil {
		hasCoords = true
		lat, lng = splitLocation(p.Coordinates)
	}
	o, err := scanOrder(s.pool.QueryRow(ctx, `
        UPDATE orders
        SET title = COALESCE($2, title),
            description = COALESCE($3, description),
            category = COALESCE($4, category),
            location = COALESCE($5, location),
            lat = CASE WHEN $6 THEN $7 ELSE lat END,
            lng = CASE WHEN $6 THEN $8 ELSE lng END
        WHERE id = $1 AND status = 'PENDING'
        RETURNING `+orderColumns,
		id, p.Title, p.Description, p.Category, p.Location, hasCoords, lat, lng))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetOrder(ctx, id); getErr != nil {
			return domain.Order{}, getErr
		}
		return domain.Order{}, domain.ErrConflict
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

// TransitionOrder runs the status compare-and-swap and, for completion, the
// settlement inside one transaction.
func (s *Store) TransitionOrder(ctx context.Context, t domain.Transition) (domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("transaction start failed: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx, `
        UPDATE orders
        SET status = $3,
            worker_id = COALESCE(NULLIF($4, ''), worker_id),
            accepted_at = CASE WHEN $3 = 'ACCEPTED' THEN $5 ELSE accepted_at END,
            started_at = CASE WHEN $3 = 'IN_PROGRESS' THEN $5 ELSE started_at END,
            completed_at = CASE WHEN $3 = 'COMPLETED' THEN $5 ELSE completed_at END,
            cancelled_at = CASE WHEN $3 = 'CANCELLED' THEN $5 ELSE cancelled_at END
        WHERE id = $1 AND status = $2
        RETURNING `+orderColumns,
		t.OrderID, string(t.From), string(t.To), t.WorkerID, t.At))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, t.OrderID).Scan(&exists); err != nil {
			return domain.Order{}, fmt.Errorf("check order: %w", err)
		}
		if !exists {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, domain.ErrConflict
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if st := t.Settlement; st != nil {
		tag, err := tx.Exec(ctx, `
            UPDATE users SET balance = balance + $2, completed_jobs = completed_jobs + 1, updated_at = $3
            WHERE id = $1`, st.WorkerID, st.Payout, t.At)
		if err != nil {
			return domain.Order{}, fmt.Errorf("credit worker: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.Order{}, domain.ErrNotFound
		}

		batch := &pgx.Batch{}
		batch.Queue(`INSERT INTO ledger (id, user_id, order_id, kind, amount, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			uuid.NewString(), st.WorkerID, t.OrderID, string(domain.LedgerSettlementCredit), st.Payout, t.At)
		batch.Queue(`INSERT INTO ledger (id, user_id, order_id, kind, amount, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			uuid.NewString(), domain.PlatformAccount, t.OrderID, string(domain.LedgerCommission), st.Commission, t.At)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isUniqueViolation(err) {
				return domain.Order{}, domain.ErrConflict
			}
			return domain.Order{}, fmt.Errorf("record settlement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit failed: %w", err)
	}
	return o, nil
}

func (s *Store) SetReview(ctx context.Context, orderID string, r domain.Review) (domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("transaction start failed: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx, `
        UPDATE orders SET review_rating = $2, review_comment = $3, review_created_at = $4
        WHERE id = $1 AND status = 'COMPLETED' AND review_rating IS NULL
        RETURNING `+orderColumns, orderID, r.Rating, r.Comment, r.CreatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetOrder(ctx, orderID); getErr != nil {
			return domain.Order{}, getErr
		}
		return domain.Order{}, domain.ErrConflict
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("store review: %w", err)
	}

	if o.WorkerID != "" {
		_, err = tx.Exec(ctx, `
            UPDATE users
            SET rating = (rating * rating_count + $2) / (rating_count + 1),
                rating_count = rating_count + 1
            WHERE id = $1`, o.WorkerID, float64(r.Rating))
		if err != nil {
			return domain.Order{}, fmt.Errorf("update worker rating: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit failed: %w", err)
	}
	return o, nil
}

// ===== chats =====

const chatColumns = `id, user_a, user_b, last_message, created_at`

func scanChat(row pgx.Row) (domain.Chat, error) {
	var (
		c    domain.Chat
		last []byte
	)
	if err := row.Scan(&c.ID, &c.Participants[0], &c.Participants[1], &last, &c.CreatedAt); err != nil {
		return domain.Chat{}, err
	}
	if len(last) > 0 {
		var m domain.Message
		if err := json.Unmarshal(last, &m); err != nil {
			return domain.Chat{}, fmt.Errorf("decode last message: %w", err)
		}
		c.LastMessage = &m
	}
	return c, nil
}

func (s *Store) GetOrCreateChat(ctx context.Context, c domain.Chat) (domain.Chat, bool, error) {
	pair := domain.Pair(c.Participants[0], c.Participants[1])
	key := domain.PairKey(pair[0], pair[1])

	tag, err := s.pool.Exec(ctx, `
        INSERT INTO chats (id, user_a, user_b, pair_key, created_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (pair_key) DO NOTHING`, c.ID, pair[0], pair[1], key, c.CreatedAt)
	if err != nil {
		return domain.Chat{}, false, fmt.Errorf("insert chat: %w", err)
	}
	created := tag.RowsAffected() == 1

	existing, err := scanChat(s.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE pair_key = $1`, key))
	if err != nil {
		return domain.Chat{}, false, notFound(err)
	}
	return existing, created, nil
}

func (s *Store) GetChat(ctx context.Context, id string) (domain.Chat, error) {
	c, err := scanChat(s.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id))
	if err != nil {
		return domain.Chat{}, notFound(err)
	}
	return c, nil
}

func (s *Store) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+chatColumns+` FROM chats
        WHERE user_a = $1 OR user_b = $1
        ORDER BY COALESCE((last_message->>'timestamp')::timestamptz, created_at) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]domain.Chat, 0)
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var (
		m                    domain.Message
		status               string
		content, attachments []byte
	)
	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &content, &attachments, &status, &m.Timestamp); err != nil {
		return domain.Message{}, err
	}
	m.Status = domain.MessageStatus(status)
	if err := json.Unmarshal(content, &m.Content); err != nil {
		return domain.Message{}, fmt.Errorf("decode content: %w", err)
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return domain.Message{}, fmt.Errorf("decode attachments: %w", err)
		}
	}
	if len(m.Attachments) == 0 {
		m.Attachments = nil
	}
	return m, nil
}

const messageColumns = `id, chat_id, sender_id, content, attachments, status, created_at`

// AppendMessage locks the chat row so concurrent senders serialize and the
// history stays in timestamp order.
func (s *Store) AppendMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Message{}, fmt.Errorf("transaction start failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var lastAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT (last_message->>'timestamp')::timestamptz FROM chats WHERE id = $1 FOR UPDATE`, m.ChatID).Scan(&lastAt)
	if err != nil {
		return domain.Message{}, notFound(err)
	}
	if lastAt != nil && m.Timestamp.Before(*lastAt) {
		m.Timestamp = *lastAt
	}

	content, err := json.Marshal(m.Content)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode content: %w", err)
	}
	attachments := m.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	attJSON, err := json.Marshal(attachments)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode attachments: %w", err)
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO messages (id, chat_id, sender_id, content, attachments, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.ChatID, m.SenderID, content, attJSON, string(m.Status), m.Timestamp); err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}

	last, err := json.Marshal(m)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode last message: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE chats SET last_message = $2 WHERE id = $1`, m.ChatID, last); err != nil {
		return domain.Message{}, fmt.Errorf("update last message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Message{}, fmt.Errorf("commit failed: %w", err)
	}
	return m, nil
}

func (s *Store) GetMessage(ctx context.Context, chatID, id string) (domain.Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1 AND chat_id = $2`, id, chatID))
	if err != nil {
		return domain.Message{}, notFound(err)
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string, since time.Time) ([]domain.Message, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if since.IsZero() {
		rows, err = s.pool.Query(ctx, `
            SELECT `+messageColumns+` FROM messages WHERE chat_id = $1 ORDER BY created_at ASC, seq ASC`, chatID)
	} else {
		rows, err = s.pool.Query(ctx, `
            SELECT `+messageColumns+` FROM messages WHERE chat_id = $1 AND created_at > $2
            ORDER BY created_at ASC, seq ASC`, chatID, since)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func earlierStatuses(status domain.MessageStatus) []string {
	var res []string
	for _, st := range []domain.MessageStatus{domain.MessageSent, domain.MessageDelivered, domain.MessageRead} {
		if st.Before(status) {
			res = append(res, string(st))
		}
	}
	return res
}

func (s *Store) AdvanceStatus(ctx context.Context, chatID, readerID string, status domain.MessageStatus) (int, error) {
	earlier := earlierStatuses(status)
	if len(earlier) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("transaction start failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)`, chatID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check chat: %w", err)
	}
	if !exists {
		return 0, domain.ErrNotFound
	}

	tag, err := tx.Exec(ctx, `
        UPDATE messages SET status = $3
        WHERE chat_id = $1 AND sender_id <> $2 AND status = ANY($4)`, chatID, readerID, string(status), earlier)
	if err != nil {
		return 0, fmt.Errorf("advance message status: %w", err)
	}
	if _, err := tx.Exec(ctx, `
        UPDATE chats SET last_message = jsonb_set(last_message, '{status}', to_jsonb($3::text))
        WHERE id = $1 AND last_message IS NOT NULL
          AND last_message->>'senderId' <> $2
          AND last_message->>'status' = ANY($4)`, chatID, readerID, string(status), earlier); err != nil {
		return 0, fmt.Errorf("advance last message status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CountUnread(ctx context.Context, chatID, readerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM messages WHERE chat_id = $1 AND sender_id <> $2 AND status <> 'READ'`,
		chatID, readerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// ===== notifications =====

const notificationColumns = `id, user_id, type, title, message, is_read, related_id, created_at`

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var (
		n     domain.Notification
		ntype string
	)
	if err := row.Scan(&n.ID, &n.UserID, &ntype, &n.Title, &n.Message, &n.IsRead, &n.RelatedID, &n.CreatedAt); err != nil {
		return domain.Notification{}, err
	}
	n.Type = domain.NotificationType(ntype)
	return n, nil
}

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO notifications (id, user_id, type, title, message, is_read, related_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.IsRead, n.RelatedID, n.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (domain.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return domain.Notification{}, notFound(err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, since time.Time) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+notificationColumns+` FROM notifications
        WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at > $2)
        ORDER BY created_at DESC`, userID, nullTime(since))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ===== ledger & stats =====

func (s *Store) ListLedger(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, user_id, order_id, kind, amount, created_at
        FROM ledger WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		var (
			e    domain.LedgerEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.OrderID, &kind, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Kind = domain.LedgerKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	st := store.Stats{
		UsersByRole:    make(map[domain.Role]int),
		OrdersByStatus: make(map[domain.OrderStatus]int),
	}

	rows, err := s.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return st, fmt.Errorf("count users: %w", err)
	}
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			rows.Close()
			return st, fmt.Errorf("scan user count: %w", err)
		}
		st.UsersByRole[domain.Role(role)] = n
	}
	rows.Close()

	rows, err = s.pool.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return st, fmt.Errorf("count orders: %w", err)
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return st, fmt.Errorf("scan order count: %w", err)
		}
		st.OrdersByStatus[domain.OrderStatus(status)] = n
	}
	rows.Close()

	err = s.pool.QueryRow(ctx, `
        SELECT COALESCE((SELECT SUM(amount) FROM ledger WHERE kind = 'COMMISSION'), 0),
               (SELECT COUNT(*) FROM messages)`).Scan(&st.TotalCommission, &st.Messages)
	if err != nil {
		return st, fmt.Errorf("aggregate stats: %w", err)
	}
	return st, nil
}
