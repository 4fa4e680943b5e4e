package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        google_id TEXT UNIQUE NOT NULL,
        email TEXT UNIQUE NOT NULL,
        name TEXT NOT NULL,
        avatar_url TEXT NOT NULL DEFAULT '',
        is_admin BOOLEAN NOT NULL DEFAULT FALSE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        ai_enabled BOOLEAN NOT NULL DEFAULT TRUE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS memberships (
        user_id INTEGER NOT NULL,
        chat_id TEXT NOT NULL,
        PRIMARY KEY (user_id, chat_id),
        FOREIGN KEY (user_id) REFERENCES users (id),
        FOREIGN KEY (chat_id) REFERENCES chats (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT UNIQUE NOT NULL, -- UUID
        chat_id TEXT NOT NULL,
        sender_kind TEXT NOT NULL CHECK (sender_kind IN ('user', 'ai')),
        sender_user_id INTEGER,
        content TEXT NOT NULL DEFAULT '',
        image_url TEXT,
        timestamp DATETIME NOT NULL,
        CHECK ((sender_kind = 'user') = (sender_user_id IS NOT NULL)),
        CHECK (content <> '' OR image_url IS NOT NULL),
        FOREIGN KEY (chat_id) REFERENCES chats (id)
    );

    CREATE TABLE IF NOT EXISTS settings (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) GetUserByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return s.queryUser(ctx, "SELECT id, google_id, email, name, avatar_url, is_admin, created_at FROM users WHERE google_id = ?", googleID)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryUser(ctx, "SELECT id, google_id, email, name, avatar_url, is_admin, created_at FROM users WHERE email = ?", email)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.queryUser(ctx, "SELECT id, google_id, email, name, avatar_url, is_admin, created_at FROM users WHERE id = ?", id)
}

func (s *SQLiteStore) queryUser(ctx context.Context, query string, arg interface{}) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.AvatarURL, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	user.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (google_id, email, name, avatar_url, is_admin, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.GoogleID, user.Email, user.Name, user.AvatarURL, user.IsAdmin, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	user.ID, _ = res.LastInsertId()
	return nil
}

// UpdateUserProfile refreshes the mutable profile fields from the freshest
// provider data.
func (s *SQLiteStore) UpdateUserProfile(ctx context.Context, userID int64, name, avatarURL string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET name = ?, avatar_url = ? WHERE id = ?", name, avatarURL, userID)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user not found, profile not updated")
	}
	return nil
}

// LinkGoogleID re-points a user row at a new external identity. Used when a
// returning user is matched by email after their provider identity changed.
func (s *SQLiteStore) LinkGoogleID(ctx context.Context, userID int64, googleID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE users SET google_id = ? WHERE id = ?", googleID, userID)
	if err != nil {
		return fmt.Errorf("failed to link google id: %w", err)
	}
	return nil
}

// Chat methods

// CreateChat inserts the chat and its creator's membership in a single
// transaction so a chat never exists without its creator as a member.
func (s *SQLiteStore) CreateChat(ctx context.Context, name string, creatorID int64) (*Chat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	chat := &Chat{
		ID:        uuid.NewString(),
		Name:      name,
		AIEnabled: true,
		CreatedAt: time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO chats (id, name, ai_enabled, created_at) VALUES (?, ?, ?, ?)",
		chat.ID, chat.Name, chat.AIEnabled, chat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat: %w", err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO memberships (user_id, chat_id) VALUES (?, ?)", creatorID, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit chat creation: %w", err)
	}
	return chat, nil
}

func (s *SQLiteStore) GetChatByID(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	err := s.db.QueryRowContext(ctx, "SELECT id, name, ai_enabled, created_at FROM chats WHERE id = ?", chatID).
		Scan(&chat.ID, &chat.Name, &chat.AIEnabled, &chat.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

// GetChatsByUserID returns the chats the user belongs to, each with a preview
// of its latest message.
func (s *SQLiteStore) GetChatsByUserID(ctx context.Context, userID int64) ([]ChatSummary, error) {
	query := `
        SELECT c.id, c.name, c.ai_enabled, m.content, m.timestamp
        FROM chats c
        JOIN memberships mem ON mem.chat_id = c.id AND mem.user_id = ?
        LEFT JOIN messages m ON m.seq = (
            SELECT seq FROM messages WHERE chat_id = c.id ORDER BY seq DESC LIMIT 1
        )
        ORDER BY c.created_at DESC
    `
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []ChatSummary
	for rows.Next() {
		var chat ChatSummary
		var content sql.NullString
		var ts sql.NullTime
		if err := rows.Scan(&chat.ID, &chat.Name, &chat.AIEnabled, &content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		if content.Valid {
			chat.LastMessage = content.String
		}
		if ts.Valid {
			chat.LastMessageTime = &ts.Time
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (s *SQLiteStore) SetChatAIEnabled(ctx context.Context, chatID string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE chats SET ai_enabled = ? WHERE id = ?", enabled, chatID)
	if err != nil {
		return fmt.Errorf("failed to update chat ai flag: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("chat not found, ai flag not updated")
	}
	return nil
}

// Membership methods

func (s *SQLiteStore) IsMember(ctx context.Context, userID int64, chatID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM memberships WHERE user_id = ? AND chat_id = ?", userID, chatID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to query membership: %w", err)
	}
	return true, nil
}

// AddMember is idempotent: adding an existing member is a no-op, never a
// duplicate row.
func (s *SQLiteStore) AddMember(ctx context.Context, userID int64, chatID string) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO memberships (user_id, chat_id) VALUES (?, ?)", userID, chatID)
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// Message methods

func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now().UTC()

	var senderUserID interface{}
	if !msg.Sender.IsAI() {
		senderUserID = msg.Sender.UserID
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, chat_id, sender_kind, sender_user_id, content, image_url, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.ChatID, string(msg.Sender.Kind), senderUserID, msg.Content, msg.ImageURL, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	msg.Seq, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetMessagesByChatID(ctx context.Context, chatID string) ([]Message, error) {
	query := "SELECT seq, id, chat_id, sender_kind, sender_user_id, content, image_url, timestamp FROM messages WHERE chat_id = ? ORDER BY timestamp ASC, seq ASC"
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// GetLastNMessagesByChatID returns up to n most recent messages in
// chronological order (oldest of the n first).
func (s *SQLiteStore) GetLastNMessagesByChatID(ctx context.Context, chatID string, n int) ([]Message, error) {
	query := "SELECT seq, id, chat_id, sender_kind, sender_user_id, content, image_url, timestamp FROM messages WHERE chat_id = ? ORDER BY timestamp DESC, seq DESC LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, chatID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetLastAIMessage returns the most recent automated message in the chat, or
// nil if the automated participant has not spoken yet.
func (s *SQLiteStore) GetLastAIMessage(ctx context.Context, chatID string) (*Message, error) {
	query := "SELECT seq, id, chat_id, sender_kind, sender_user_id, content, image_url, timestamp FROM messages WHERE chat_id = ? AND sender_kind = 'ai' ORDER BY timestamp DESC, seq DESC LIMIT 1"
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query last ai message: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return &messages[0], nil
}

// CountMessagesAfter counts the chat's messages strictly after the given
// message. Ordering is (timestamp, seq) so messages sharing the reference
// timestamp are neither dropped nor double-counted. A nil reference counts
// every message in the chat.
func (s *SQLiteStore) CountMessagesAfter(ctx context.Context, chatID string, after *Message) (int, error) {
	var count int
	var err error
	if after == nil {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&count)
	} else {
		query := "SELECT COUNT(*) FROM messages WHERE chat_id = ? AND (timestamp > ? OR (timestamp = ? AND seq > ?))"
		err = s.db.QueryRowContext(ctx, query, chatID, after.Timestamp, after.Timestamp, after.Seq).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		var kind string
		var senderUserID sql.NullInt64
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.ChatID, &kind, &senderUserID, &msg.Content, &msg.ImageURL, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if SenderKind(kind) == SenderAI {
			msg.Sender = AISender()
		} else {
			msg.Sender = HumanSender(senderUserID.Int64)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Settings methods

// GetSetting returns the value for key and whether it was present.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query setting: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
