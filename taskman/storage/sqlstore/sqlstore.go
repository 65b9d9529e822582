// Package sqlstore implements the "sqlite" and "postgres" storage backends.
// Documents are stored as JSON text next to an indexed type column, and
// attachments in their own table.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

// Store is a storage.Backend on a SQL database
type Store struct {
	db      *sql.DB
	dialect Dialect
	sq      squirrel.StatementBuilderType
}

// OpenSQLite opens (and creates if needed) a SQLite database file
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, types.IOError("open sqlite database", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, types.IOError("configure sqlite database", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil && !strings.Contains(err.Error(), "database is locked") {
			_ = db.Close()
			return nil, types.IOError("configure sqlite database", err)
		}
	}

	// single writer connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return New(ctx, db, SQLite)
}

// OpenPostgres connects to a PostgreSQL database through pgx
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, types.ConfigError(fmt.Sprintf("invalid postgres connection string: %v", err))
	}
	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, types.IOError("connect to postgres", err)
	}
	return New(ctx, db, Postgres)
}

// New wraps an open database and creates the tables if needed. The store
// owns db and closes it on Close.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: dialect,
		sq:      squirrel.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
	}
	for _, stmt := range dialect.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, types.IOError("create tables", err)
		}
	}
	return s, nil
}

// Dialect returns the database dialect of the store
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func decode(id, body string) (types.Document, error) {
	var doc types.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, types.IOError("decode document", fmt.Errorf("%s: %w", id, err))
	}
	return doc, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getWith(ctx context.Context, q queryer, id string) (types.Document, error) {
	query, args, err := s.sq.Select("body").From("documents").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	var body string
	err = q.QueryRowContext(ctx, query, args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NotFoundError(id)
	}
	if err != nil {
		return nil, types.IOError("get document", err)
	}
	return decode(id, body)
}

// Get retrieves a document by id
func (s *Store) Get(ctx context.Context, id string) (types.Document, error) {
	return s.getWith(ctx, s.db, id)
}

// inTx runs fn in a transaction, committing when it succeeds
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.IOError("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return types.IOError("commit transaction", err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, doc types.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return types.IOError("encode document", err)
	}
	query, args, err := s.sq.Insert("documents").
		Columns("id", "type", "body").
		Values(doc.ID(), doc.Type(), string(body)).
		Suffix("ON CONFLICT (id) DO UPDATE SET type = excluded.type, body = excluded.body").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return types.IOError("write document", err)
	}
	return nil
}

// Put creates or replaces a document
func (s *Store) Put(ctx context.Context, doc types.Document) (string, error) {
	var id string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stored, err := s.getWith(ctx, tx, doc.ID())
		if err != nil && !types.IsNotFound(err) {
			return err
		}
		prepared, err := storage.PrepareWrite(doc, stored)
		if err != nil {
			return err
		}
		id = prepared.ID()
		return s.upsert(ctx, tx, prepared)
	})
	return id, err
}

// Post creates a document, assigning an id when it has none
func (s *Store) Post(ctx context.Context, doc types.Document) (string, error) {
	prepared := storage.PreparePost(doc)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.getWith(ctx, tx, prepared.ID())
		switch {
		case err == nil:
			return storage.ConflictError(prepared.ID())
		case !types.IsNotFound(err):
			return err
		}
		return s.upsert(ctx, tx, prepared)
	})
	if err != nil {
		return "", err
	}
	return prepared.ID(), nil
}

// Remove deletes a document and its attachments
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := s.sq.Delete("documents").Where(squirrel.Eq{"id": id}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return types.IOError("remove document", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return types.NotFoundError(id)
		}

		query, args, err = s.sq.Delete("attachments").Where(squirrel.Eq{"doc_id": id}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return types.IOError("remove attachments", err)
		}
		return nil
	})
}

func (s *Store) list(ctx context.Context, where squirrel.Sqlizer) ([]types.Document, error) {
	builder := s.sq.Select("id", "body").From("documents").OrderBy("id")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.IOError("list documents", err)
	}
	defer func() { _ = rows.Close() }()

	docs := []types.Document{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, types.IOError("list documents", err)
		}
		doc, err := decode(id, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.IOError("list documents", err)
	}
	return docs, nil
}

// List returns every document ordered by id
func (s *Store) List(ctx context.Context) ([]types.Document, error) {
	return s.list(ctx, nil)
}

// ListType returns the documents of one type ordered by id
func (s *Store) ListType(ctx context.Context, docType string) ([]types.Document, error) {
	return s.list(ctx, squirrel.Eq{"type": docType})
}

// GetAttachment returns the attachment bytes
func (s *Store) GetAttachment(ctx context.Context, id, name string) ([]byte, error) {
	query, args, err := s.sq.Select("data").From("attachments").
		Where(squirrel.Eq{"doc_id": id, "name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, types.AttachmentNotFoundError(id, name)
	}
	if err != nil {
		return nil, types.IOError("get attachment", err)
	}
	return data, nil
}

// PutAttachment stores attachment bytes and records their metadata on the
// document, in one transaction
func (s *Store) PutAttachment(ctx context.Context, id, name, contentType string, data []byte) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		doc, err := s.getWith(ctx, tx, id)
		if err != nil {
			return err
		}
		info := storage.AttachmentInfoFor(contentType, data)

		query, args, err := s.sq.Insert("attachments").
			Columns("doc_id", "name", "content_type", "data").
			Values(id, name, info.ContentType, data).
			Suffix("ON CONFLICT (doc_id, name) DO UPDATE SET content_type = excluded.content_type, data = excluded.data").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return types.IOError("write attachment", err)
		}

		doc.SetAttachment(name, info)
		return s.upsert(ctx, tx, doc)
	})
}

// RemoveAttachment deletes one attachment
func (s *Store) RemoveAttachment(ctx context.Context, id, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		doc, err := s.getWith(ctx, tx, id)
		if err != nil {
			return err
		}
		query, args, err := s.sq.Delete("attachments").
			Where(squirrel.Eq{"doc_id": id, "name": name}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return types.IOError("remove attachment", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return types.AttachmentNotFoundError(id, name)
		}
		doc.DeleteAttachment(name)
		return s.upsert(ctx, tx, doc)
	})
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
