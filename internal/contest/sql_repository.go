package contest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLRepository implements Repository on database/sql. It speaks SQLite
// (modernc.org/sqlite, driver "sqlite") and PostgreSQL (lib/pq, driver
// "postgres").
type SQLRepository struct {
	db       *sql.DB
	postgres bool
}

// OpenSQL opens a database for the given driver ("sqlite" or "postgres") and
// makes sure the schema exists.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// SQLite allows one writer; a single connection also keeps ":memory:"
		// databases alive across calls.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	r := NewSQLRepository(db, driver == "postgres")
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// NewSQLRepository wraps an already open database. postgres selects $n
// placeholders instead of ?.
func NewSQLRepository(db *sql.DB, postgres bool) *SQLRepository {
	return &SQLRepository{db: db, postgres: postgres}
}

// Migrate creates the tables if they do not exist. Safe to call repeatedly.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Create implements Repository.Create.
func (r *SQLRepository) Create(ctx context.Context, s *Submission) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO video_contest (
			id, video_title, team_count, video_url, video_key,
			full_name, username, tg_id, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`),
		s.ID, s.Title, s.TeamCount, s.VideoURL, s.VideoKey,
		s.FullName, s.Handle, s.ExternalID, s.CreatedAt.UnixNano(),
	)
	return err
}

const submissionColumns = `id, video_title, team_count, video_url, video_key,
	full_name, username, tg_id, created_at`

// Get implements Repository.Get.
func (r *SQLRepository) Get(ctx context.Context, id string) (*Submission, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(
		`SELECT `+submissionColumns+` FROM video_contest WHERE id=?`), id)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List implements Repository.List.
func (r *SQLRepository) List(ctx context.Context) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM video_contest ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Count implements Repository.Count.
func (r *SQLRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM video_contest`).Scan(&n)
	return n, err
}

// Delete implements Repository.Delete.
func (r *SQLRepository) Delete(ctx context.Context, id string) (*Submission, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, r.rebind(
		`SELECT `+submissionColumns+` FROM video_contest WHERE id=?`), id)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM video_contest WHERE id=?`), id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteAll implements Repository.DeleteAll.
func (r *SQLRepository) DeleteAll(ctx context.Context) ([]Submission, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+submissionColumns+` FROM video_contest`)
	if err != nil {
		return nil, err
	}
	var removed []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		removed = append(removed, *s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM video_contest`); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

// UpsertParticipant implements Repository.UpsertParticipant.
func (r *SQLRepository) UpsertParticipant(ctx context.Context, id Identity, now time.Time) (*Participant, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var createdNanos int64
	err = tx.QueryRowContext(ctx, r.rebind(
		`SELECT created_at FROM contest_users WHERE tg_id=?`), id.ExternalID).Scan(&createdNanos)
	created := errors.Is(err, sql.ErrNoRows)
	switch {
	case created:
		createdNanos = now.UnixNano()
		_, err = tx.ExecContext(ctx, r.rebind(`
			INSERT INTO contest_users (tg_id, full_name, username, created_at, updated_at)
			VALUES (?,?,?,?,?)`),
			id.ExternalID, id.FullName, id.Handle, createdNanos, now.UnixNano())
	case err == nil:
		_, err = tx.ExecContext(ctx, r.rebind(`
			UPDATE contest_users SET full_name=?, username=?, updated_at=? WHERE tg_id=?`),
			id.FullName, id.Handle, now.UnixNano(), id.ExternalID)
	}
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	return &Participant{
		Identity:  id,
		CreatedAt: time.Unix(0, createdNanos).UTC(),
		UpdatedAt: now,
	}, created, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	var s Submission
	var createdNanos int64
	if err := row.Scan(
		&s.ID, &s.Title, &s.TeamCount, &s.VideoURL, &s.VideoKey,
		&s.FullName, &s.Handle, &s.ExternalID, &createdNanos,
	); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(0, createdNanos).UTC()
	return &s, nil
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if !r.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
