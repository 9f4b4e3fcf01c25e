package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Schema:
//
//	CREATE TABLE <schema>.messages (
//	    id                  text PRIMARY KEY,
//	    created_at          timestamptz NOT NULL,
//	    sender_role         text NOT NULL,
//	    original_content    text NOT NULL,
//	    translated_content  text,
//	    audio_url           text,
//	    language            text NOT NULL,
//	    metadata            jsonb NOT NULL DEFAULT '{}'::jsonb
//	);
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "translator").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("chat: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("chat: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "translator",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const messageColumns = "id, created_at, sender_role, original_content, translated_content, audio_url, language, metadata"

// Insert stores a new row. A primary key collision maps to ErrConflict.
func (s *PostgresStore) Insert(ctx context.Context, msg Message) error {
	if s == nil || s.pool == nil {
		return errors.New("chat: nil store")
	}
	if msg.ID == "" {
		return Opf("chat.Insert", ErrValidation, errors.New("empty id"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	messages := pgIdent(s.schema, "messages")

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+messages+` (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.CreatedAt.UTC(), string(msg.SenderRole), msg.OriginalContent,
		msg.TranslatedContent, msg.AudioURL, string(msg.Language), msg.Metadata,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Opf("chat.Insert", ErrConflict, nil)
		}
		return Opf("chat.Insert", ErrPersistence, err)
	}
	return nil
}

// Update replaces the mutable fields of a row and returns the updated row.
func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) (Message, error) {
	if s == nil || s.pool == nil {
		return Message{}, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	messages := pgIdent(s.schema, "messages")

	// COALESCE keeps unset patch fields untouched; immutable columns are
	// never part of the statement.
	row := s.pool.QueryRow(ctx,
		`UPDATE `+messages+`
		    SET translated_content = COALESCE($2, translated_content),
		        audio_url          = COALESCE($3, audio_url),
		        metadata           = COALESCE($4, metadata)
		  WHERE id = $1
		RETURNING `+messageColumns,
		id, patch.TranslatedContent, patch.AudioURL, patch.Metadata,
	)

	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, Opf("chat.Update", ErrNotFound, nil)
		}
		return Message{}, Opf("chat.Update", ErrPersistence, err)
	}
	return m, nil
}

// Delete removes a row and returns it.
func (s *PostgresStore) Delete(ctx context.Context, id string) (Message, error) {
	if s == nil || s.pool == nil {
		return Message{}, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	messages := pgIdent(s.schema, "messages")

	row := s.pool.QueryRow(ctx,
		`DELETE FROM `+messages+` WHERE id = $1 RETURNING `+messageColumns, id)

	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, Opf("chat.Delete", ErrNotFound, nil)
		}
		return Message{}, Opf("chat.Delete", ErrPersistence, err)
	}
	return m, nil
}

// DeleteAll removes every row and returns them in canonical order.
func (s *PostgresStore) DeleteAll(ctx context.Context) ([]Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := pgIdent(s.schema, "messages")

	rows, err := s.pool.Query(ctx,
		`DELETE FROM `+messages+` RETURNING `+messageColumns)
	if err != nil {
		return nil, Opf("chat.DeleteAll", ErrPersistence, err)
	}
	defer rows.Close()

	out, err := collectMessages(rows)
	if err != nil {
		return nil, Opf("chat.DeleteAll", ErrPersistence, err)
	}
	return out, nil
}

// List returns every row ordered by (created_at, id).
func (s *PostgresStore) List(ctx context.Context) ([]Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("chat: nil store")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := pgIdent(s.schema, "messages")

	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+`
		   FROM `+messages+`
		  ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, Opf("chat.List", ErrFetch, err)
	}
	defer rows.Close()

	out, err := collectMessages(rows)
	if err != nil {
		return nil, Opf("chat.List", ErrFetch, err)
	}
	return out, nil
}

type pgRow interface {
	Scan(dest ...any) error
}

func scanMessage(row pgRow) (Message, error) {
	var (
		m        Message
		role     string
		language string
	)
	if err := row.Scan(
		&m.ID,
		&m.CreatedAt,
		&role,
		&m.OriginalContent,
		&m.TranslatedContent,
		&m.AudioURL,
		&language,
		&m.Metadata,
	); err != nil {
		return Message{}, err
	}
	m.SenderRole = SenderRole(role)
	m.Language = Language(language)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	msgs := make([]Message, 0, 64)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

var pgIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return len(s) <= 63 && pgIdentRe.MatchString(s)
}

// pgIdent joins a validated schema with a table name into a quoted identifier.
func pgIdent(schema, table string) string {
	return fmt.Sprintf("%q.%q", schema, table)
}
