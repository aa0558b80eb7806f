package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/mealguard/internal/model"
	"github.com/ppiankov/mealguard/internal/profile"
	"github.com/ppiankov/mealguard/internal/quota"
)

// ErrNotFound is returned when a user has no stored row of the requested kind.
var ErrNotFound = errors.New("not found")

// tsLayout is fixed width so stored timestamps compare lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists readings, profiles and committed meals for the service
// boundary. The engine packages never touch it.
type Store struct {
	db *sql.DB
}

// CommittedMeal is one meal the user accepted into their plan.
type CommittedMeal struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id"`
	MealType model.MealType `json:"meal_type,omitempty"`
	quota.Item
}

// StoredReading is a reading plus the context it was taken in.
type StoredReading struct {
	model.Reading
	Context model.ReadingContext `json:"context"`
}

// Open opens (or creates) the database at path. ":memory:" is supported.
func Open(path string) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS readings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        value REAL NOT NULL,
        context TEXT NOT NULL,
        recorded_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS profiles (
        user_id TEXT PRIMARY KEY,
        body TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS committed_meals (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        meal_type TEXT NOT NULL,
        name TEXT NOT NULL,
        description TEXT NOT NULL,
        ingredients TEXT NOT NULL,
        categories TEXT NOT NULL,
        committed_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_readings_user_time ON readings(user_id, recorded_at);
    CREATE INDEX IF NOT EXISTS idx_meals_user_time ON committed_meals(user_id, committed_at);
    `
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveReading appends a reading for a user.
func (s *Store) SaveReading(ctx context.Context, userID string, r model.Reading, rc model.ReadingContext) error {
	if rc == "" {
		rc = model.ContextAny
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (user_id, value, context, recorded_at) VALUES (?, ?, ?, ?)`,
		userID, r.Value, string(rc), formatTime(r.RecordedAt))
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// LatestReading returns the most recently recorded reading for a user.
func (s *Store) LatestReading(ctx context.Context, userID string) (*StoredReading, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, context, recorded_at FROM readings
         WHERE user_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`, userID)

	var (
		sr         StoredReading
		rc, atText string
	)
	if err := row.Scan(&sr.Value, &rc, &atText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query reading: %w", err)
	}
	at, err := parseTime(atText)
	if err != nil {
		return nil, err
	}
	sr.RecordedAt = at
	sr.Context = model.ReadingContext(rc)
	return &sr, nil
}

// SaveProfile upserts a user's condition profile.
func (s *Store) SaveProfile(ctx context.Context, userID string, p *profile.Profile) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, body, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(user_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		userID, string(body), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetProfile returns a user's stored profile.
func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM profiles WHERE user_id = ?`, userID).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	var p profile.Profile
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}

// CommitMeal records a meal into the user's history and returns its ID.
// A zero CommittedAt is stamped with the current time.
func (s *Store) CommitMeal(ctx context.Context, userID string, mt model.MealType, it quota.Item) (*CommittedMeal, error) {
	if it.CommittedAt.IsZero() {
		it.CommittedAt = time.Now().UTC()
	}
	ingredients, err := json.Marshal(nonNil(it.Ingredients))
	if err != nil {
		return nil, fmt.Errorf("failed to encode ingredients: %w", err)
	}
	categories, err := json.Marshal(nonNil(it.Categories))
	if err != nil {
		return nil, fmt.Errorf("failed to encode categories: %w", err)
	}

	m := &CommittedMeal{ID: uuid.NewString(), UserID: userID, MealType: mt, Item: it}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO committed_meals (id, user_id, meal_type, name, description, ingredients, categories, committed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, userID, string(mt), it.Name, it.Description, string(ingredients), string(categories), formatTime(it.CommittedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert meal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit meal: %w", err)
	}
	return m, nil
}

// MealsSince returns a user's meals committed at or after since, oldest first.
// Zero since returns the full history.
func (s *Store) MealsSince(ctx context.Context, userID string, since time.Time) ([]CommittedMeal, error) {
	query := `SELECT id, meal_type, name, description, ingredients, categories, committed_at
              FROM committed_meals WHERE user_id = ?`
	args := []any{userID}
	if !since.IsZero() {
		query += " AND committed_at >= ?"
		args = append(args, formatTime(since))
	}
	query += " ORDER BY committed_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	var out []CommittedMeal
	for rows.Next() {
		var (
			m                          CommittedMeal
			mt, ingJSON, catJSON, atTx string
		)
		if err := rows.Scan(&m.ID, &mt, &m.Name, &m.Description, &ingJSON, &catJSON, &atTx); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		if err := json.Unmarshal([]byte(ingJSON), &m.Ingredients); err != nil {
			return nil, fmt.Errorf("failed to decode ingredients: %w", err)
		}
		if err := json.Unmarshal([]byte(catJSON), &m.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
		if m.CommittedAt, err = parseTime(atTx); err != nil {
			return nil, err
		}
		m.UserID = userID
		m.MealType = model.MealType(mt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// History returns the quota items committed at or after since.
func (s *Store) History(ctx context.Context, userID string, since time.Time) ([]quota.Item, error) {
	meals, err := s.MealsSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	items := make([]quota.Item, len(meals))
	for i, m := range meals {
		items[i] = m.Item
	}
	return items, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
