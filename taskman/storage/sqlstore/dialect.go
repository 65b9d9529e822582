package sqlstore

import (
	"github.com/Masterminds/squirrel"
)

// Dialect captures the differences between the supported databases
type Dialect struct {
	Name        string
	Placeholder squirrel.PlaceholderFormat
	BlobType    string
}

var (
	// SQLite is the dialect of modernc.org/sqlite
	SQLite = Dialect{Name: "sqlite", Placeholder: squirrel.Question, BlobType: "BLOB"}
	// Postgres is the dialect of the pgx stdlib driver
	Postgres = Dialect{Name: "postgres", Placeholder: squirrel.Dollar, BlobType: "BYTEA"}
)

func (d Dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_type_idx ON documents (type)`,
		`CREATE TABLE IF NOT EXISTS attachments (
			doc_id TEXT NOT NULL,
			name TEXT NOT NULL,
			content_type TEXT NOT NULL,
			data ` + d.BlobType + ` NOT NULL,
			PRIMARY KEY (doc_id, name)
		)`,
	}
}
