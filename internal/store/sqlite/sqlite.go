package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/castfold/casting-server/internal/store"
)

// Schema is the bootstrap DDL applied on open.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE COLLATE NOCASE,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS characters (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	avatar_url TEXT,
	owner_id   TEXT,
	active     BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE TABLE IF NOT EXISTS messages (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	id               TEXT NOT NULL UNIQUE,
	room_id          TEXT NOT NULL,
	sender_id        TEXT NOT NULL,
	sender_name      TEXT NOT NULL,
	character_name   TEXT,
	character_avatar TEXT,
	text             TEXT NOT NULL,
	reply_text       TEXT,
	reply_sender     TEXT,
	deleted          BOOLEAN NOT NULL DEFAULT 0,
	episode          BOOLEAN NOT NULL DEFAULT 0,
	read             BOOLEAN NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE INDEX IF NOT EXISTS idx_characters_room ON characters(room_id);
CREATE INDEX IF NOT EXISTS idx_characters_owner ON characters(room_id, owner_id, active);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at DESC, seq DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO users (id, username, password_hash)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, username, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== RoomStore implementation ====

// CreateRoom persists a room with a pre-generated unique code.
func (s *SQLiteStore) CreateRoom(ctx context.Context, code, name, ownerID string) (*store.Room, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO rooms (id, code, name, owner_id)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, code, name, ownerID); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return s.getRoomByID(ctx, id)
}

func (s *SQLiteStore) getRoomByID(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, code, name, owner_id, created_at
		FROM rooms
		WHERE id = ?
	`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, id))
}

// GetRoomByCode retrieves a room by its shareable code, case-insensitively.
func (s *SQLiteStore) GetRoomByCode(ctx context.Context, code string) (*store.Room, error) {
	query := `
		SELECT id, code, name, owner_id, created_at
		FROM rooms
		WHERE code = ? COLLATE NOCASE
	`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, code))
}

func (s *SQLiteStore) scanRoom(row *sql.Row) (*store.Room, error) {
	var room store.Room
	err := row.Scan(
		&room.ID,
		&room.Code,
		&room.Name,
		&room.OwnerID,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// CodeExists reports whether a room already uses the given code.
func (s *SQLiteStore) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT COUNT(1) FROM rooms WHERE code = ? COLLATE NOCASE`
	var count int
	if err := s.db.QueryRowContext(ctx, query, code).Scan(&count); err != nil {
		return false, fmt.Errorf("query code: %w", err)
	}
	return count > 0, nil
}

// ==== CharacterStore implementation ====

// CreateCharacter inserts an unowned, inactive character.
func (s *SQLiteStore) CreateCharacter(ctx context.Context, ch *store.Character) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	query := `
		INSERT INTO characters (id, room_id, name, avatar_url, owner_id, active)
		VALUES (?, ?, ?, ?, NULL, 0)
	`
	if _, err := s.db.ExecContext(ctx, query, ch.ID, ch.RoomID, ch.Name, ch.AvatarURL); err != nil {
		return fmt.Errorf("insert character: %w", err)
	}
	saved, err := s.GetCharacter(ctx, ch.ID)
	if err != nil {
		return err
	}
	*ch = *saved
	return nil
}

// GetCharacter retrieves a character by ID.
func (s *SQLiteStore) GetCharacter(ctx context.Context, id string) (*store.Character, error) {
	query := `
		SELECT id, room_id, name, avatar_url, owner_id, active, created_at
		FROM characters
		WHERE id = ?
	`
	var ch store.Character
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ch.ID,
		&ch.RoomID,
		&ch.Name,
		&ch.AvatarURL,
		&ch.OwnerID,
		&ch.Active,
		&ch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query character: %w", err)
	}
	return &ch, nil
}

// ListCharacters lists all characters in a room, oldest first.
func (s *SQLiteStore) ListCharacters(ctx context.Context, roomID string) ([]*store.Character, error) {
	query := `
		SELECT id, room_id, name, avatar_url, owner_id, active, created_at
		FROM characters
		WHERE room_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	characters := make([]*store.Character, 0)
	for rows.Next() {
		var ch store.Character
		if err := rows.Scan(
			&ch.ID,
			&ch.RoomID,
			&ch.Name,
			&ch.AvatarURL,
			&ch.OwnerID,
			&ch.Active,
			&ch.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		characters = append(characters, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}
	return characters, nil
}

// ClaimCharacter atomically deactivates any other character the user has
// active in the room and marks the target owned and active. Both updates
// run in one transaction so observers never see two active characters for
// the same owner.
func (s *SQLiteStore) ClaimCharacter(ctx context.Context, roomID, characterID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	deactivate := `
		UPDATE characters
		SET active = 0
		WHERE room_id = ? AND owner_id = ? AND active = 1 AND id != ?
	`
	if _, err := tx.ExecContext(ctx, deactivate, roomID, userID, characterID); err != nil {
		return fmt.Errorf("deactivate previous character: %w", err)
	}

	claim := `
		UPDATE characters
		SET owner_id = ?, active = 1
		WHERE id = ? AND room_id = ?
	`
	res, err := tx.ExecContext(ctx, claim, userID, characterID, roomID)
	if err != nil {
		return fmt.Errorf("claim character: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

// ReleaseCharacter clears ownership and the active flag.
func (s *SQLiteStore) ReleaseCharacter(ctx context.Context, characterID string) error {
	query := `
		UPDATE characters
		SET owner_id = NULL, active = 0
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, characterID)
	if err != nil {
		return fmt.Errorf("release character: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateCharacter applies a partial update.
func (s *SQLiteStore) UpdateCharacter(ctx context.Context, characterID string, patch store.CharacterPatch) error {
	current, err := s.GetCharacter(ctx, characterID)
	if err != nil {
		return err
	}

	name := current.Name
	if patch.Name != nil {
		name = *patch.Name
	}
	avatar := current.AvatarURL
	if patch.AvatarURL != nil {
		avatar = patch.AvatarURL
	}

	query := `
		UPDATE characters
		SET name = ?, avatar_url = ?
		WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, name, avatar, characterID); err != nil {
		return fmt.Errorf("update character: %w", err)
	}
	return nil
}

// DeleteCharacter removes the character.
func (s *SQLiteStore) DeleteCharacter(ctx context.Context, characterID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE id = ?`, characterID)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its Seq.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	query := `
		INSERT INTO messages (
			id, room_id, sender_id, sender_name,
			character_name, character_avatar,
			text, reply_text, reply_sender,
			deleted, episode, read, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.RoomID, msg.SenderID, msg.SenderName,
		msg.CharacterName, msg.CharacterAvatar,
		msg.Text, msg.ReplyText, msg.ReplySender,
		msg.Deleted, msg.Episode, msg.Read, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get message seq: %w", err)
	}
	msg.Seq = seq
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := messageSelect + ` WHERE id = ?`
	var msg store.Message
	err := scanMessage(s.db.QueryRowContext(ctx, query, id).Scan, &msg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return &msg, nil
}

// MarkMessageDeleted replaces the text with a tombstone and sets the
// deleted flag.
func (s *SQLiteStore) MarkMessageDeleted(ctx context.Context, id, tombstone string) error {
	query := `
		UPDATE messages
		SET text = ?, deleted = 1
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, tombstone, id)
	if err != nil {
		return fmt.Errorf("mark message deleted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkMessageRead sets the read flag. The transition is monotonic; an
// already-read message is left as is.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id string) error {
	query := `
		UPDATE messages
		SET read = 1
		WHERE id = ? AND read = 0
	`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

// ListRecentMessages returns up to limit messages for a room, newest first.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	query := messageSelect + `
		WHERE room_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var msg store.Message
		if err := scanMessage(rows.Scan, &msg); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

const messageSelect = `
	SELECT seq, id, room_id, sender_id, sender_name,
	       character_name, character_avatar,
	       text, reply_text, reply_sender,
	       deleted, episode, read, created_at
	FROM messages
`

func scanMessage(scan func(dest ...any) error, msg *store.Message) error {
	return scan(
		&msg.Seq,
		&msg.ID,
		&msg.RoomID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.CharacterName,
		&msg.CharacterAvatar,
		&msg.Text,
		&msg.ReplyText,
		&msg.ReplySender,
		&msg.Deleted,
		&msg.Episode,
		&msg.Read,
		&msg.CreatedAt,
	)
}
