package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"tradeledger/internal/ports"
)

// Config holds configuration for the SQLite document store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// Connector opens SQLite-backed document stores. Every logical database and
// collection lives in the same file; a collection maps to one table of JSON documents.
type Connector struct {
	cfg Config
}

// NewConnector validates cfg and returns a connector for it.
func NewConnector(cfg Config) (*Connector, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite document store: %w", ports.ErrConfiguration)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./data/tradeledger.db" // Default path
	}
	return &Connector{cfg: cfg}, nil
}

// Connect opens the database file and verifies it is reachable.
func (c *Connector) Connect(ctx context.Context) (ports.Client, error) {
	dbPath := c.cfg.DBPath
	if dbPath != ":memory:" {
		// Create data directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory '%s': %v: %w", filepath.Dir(dbPath), err, ports.ErrConnection)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		return nil, fmt.Errorf("failed to open database at '%s': %v: %w", dbPath, err, ports.ErrConnection)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at '%s': %v: %w", dbPath, err, ports.ErrConnection)
	}

	// SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	c.cfg.Logger.Info(ctx, "SQLite document store opened", map[string]interface{}{"path": dbPath})
	return &Client{db: db, logger: c.cfg.Logger, ensured: make(map[string]bool)}, nil
}

// Client is an open SQLite document store.
type Client struct {
	db     *sql.DB
	logger ports.Logger

	mu      sync.Mutex
	ensured map[string]bool // tables known to exist
}

// Database returns the logical database called name.
func (c *Client) Database(name string) ports.Database {
	return &Database{client: c, name: name}
}

// Ping checks the file is still usable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %v: %w", err, ports.ErrConnection)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info(ctx, "Closing SQLite document store")
	return c.db.Close()
}

// Database is a logical database inside the SQLite file. Its collections are
// tables named "<database>.<collection>".
type Database struct {
	client *Client
	name   string
}

// Name returns the logical database name.
func (d *Database) Name() string { return d.name }

// Collection returns the named collection. The backing table is created on first use.
func (d *Database) Collection(name string) ports.Collection {
	return &Collection{client: d.client, name: name, table: d.name + "." + name}
}

// Collection is a table of JSON documents.
type Collection struct {
	client *Client
	name   string
	table  string
}

var _ ports.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) ensure(ctx context.Context) error {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	if c.client.ensured[c.table] {
		return nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		doc TEXT NOT NULL CHECK (json_valid(doc))
	)`, quoteIdent(c.table))
	if _, err := c.client.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.name, translate(err))
	}
	c.client.ensured[c.table] = true
	return nil
}

// InsertOne writes a new document.
func (c *Collection) InsertOne(ctx context.Context, doc ports.Document) error {
	if err := c.ensure(ctx); err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (doc) VALUES (?)`, quoteIdent(c.table))
	if _, err := c.client.db.ExecContext(ctx, query, string(doc)); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", c.name, translate(err))
	}
	c.client.logger.Debug(ctx, "Document inserted", map[string]interface{}{"collection": c.name})
	return nil
}

// Find returns the documents matching filter.
func (c *Collection) Find(ctx context.Context, filter ports.Filter, opts ports.FindOptions) ([]ports.Document, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`SELECT doc FROM %s%s`, quoteIdent(c.table), where))
	if opts.SortOrder != 0 && opts.SortField != "" {
		expr, err := fieldExpr(opts.SortField)
		if err != nil {
			return nil, err
		}
		dir := "ASC"
		if opts.SortOrder == ports.Descending {
			dir = "DESC"
		}
		sb.WriteString(fmt.Sprintf(` ORDER BY %s %s, seq %s`, expr, dir, dir))
	}
	if opts.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := c.client.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, translate(err))
	}
	defer rows.Close()

	docs := make([]ports.Document, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan document from %s: %w", c.name, err)
		}
		docs = append(docs, ports.Document(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents of %s: %w", c.name, translate(err))
	}
	return docs, nil
}

// FindOne returns the first matching document or ports.ErrNotFound.
func (c *Collection) FindOne(ctx context.Context, filter ports.Filter) (ports.Document, error) {
	docs, err := c.Find(ctx, filter, ports.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no document in %s: %w", c.name, ports.ErrNotFound)
	}
	return docs[0], nil
}

// FindOneAndUpsert replaces the top-level fields of the matching document with
// those of doc, or inserts doc merged with the filter's equality fields.
func (c *Collection) FindOneAndUpsert(ctx context.Context, filter ports.Filter, doc ports.Document) (ports.Document, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}
	var update map[string]json.RawMessage
	if err := json.Unmarshal(doc, &update); err != nil {
		return nil, fmt.Errorf("update for %s is not a JSON object: %w", c.name, err)
	}

	tx, err := c.client.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin upsert on %s: %w", c.name, translate(err))
	}
	defer tx.Rollback()

	var (
		seq     int64
		current string
	)
	query := fmt.Sprintf(`SELECT seq, doc FROM %s%s LIMIT 1`, quoteIdent(c.table), where)
	err = tx.QueryRowContext(ctx, query, args...).Scan(&seq, &current)
	found := true
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return nil, fmt.Errorf("failed to read %s for upsert: %w", c.name, translate(err))
	}

	merged := make(map[string]json.RawMessage)
	if found {
		if err := json.Unmarshal([]byte(current), &merged); err != nil {
			return nil, fmt.Errorf("stored document in %s is not a JSON object: %w", c.name, err)
		}
	} else {
		for _, cond := range filter {
			if cond.Op != ports.OpEq || strings.Contains(cond.Field, ".") {
				continue
			}
			v, err := json.Marshal(cond.Value)
			if err != nil {
				return nil, fmt.Errorf("failed to encode filter value for %s: %w", cond.Field, err)
			}
			merged[cond.Field] = v
		}
	}
	for k, v := range update {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged document for %s: %w", c.name, err)
	}

	if found {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET doc = ? WHERE seq = ?`, quoteIdent(c.table)), string(out), seq)
	} else {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (doc) VALUES (?)`, quoteIdent(c.table)), string(out))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert into %s: %w", c.name, translate(err))
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upsert on %s: %w", c.name, translate(err))
	}
	c.client.logger.Debug(ctx, "Document upserted", map[string]interface{}{"collection": c.name, "inserted": !found})
	return ports.Document(out), nil
}

// DeleteOne removes at most one matching document.
func (c *Collection) DeleteOne(ctx context.Context, filter ports.Filter) (int64, error) {
	if err := c.ensure(ctx); err != nil {
		return 0, err
	}
	where, args, err := buildWhere(filter)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`DELETE FROM %[1]s WHERE seq = (SELECT seq FROM %[1]s%[2]s LIMIT 1)`, quoteIdent(c.table), where)
	result, err := c.client.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", c.name, translate(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for delete on %s: %w", c.name, err)
	}
	return n, nil
}

// Drop removes the table and its indexes.
func (c *Collection) Drop(ctx context.Context) error {
	c.client.mu.Lock()
	defer c.client.mu.Unlock()
	if _, err := c.client.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(c.table))); err != nil {
		return fmt.Errorf("failed to drop %s: %w", c.name, translate(err))
	}
	delete(c.client.ensured, c.table)
	c.client.logger.Info(ctx, "Collection dropped", map[string]interface{}{"collection": c.name})
	return nil
}

// IndexNames lists the logical names of the indexes on the collection.
func (c *Collection) IndexNames(ctx context.Context) ([]string, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	rows, err := c.client.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? ORDER BY name`, c.table)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes of %s: %w", c.name, translate(err))
	}
	defer rows.Close()

	prefix := c.table + "."
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan index name of %s: %w", c.name, err)
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, strings.TrimPrefix(name, prefix))
		}
	}
	return names, rows.Err()
}

// CreateIndex creates an expression index over the JSON field of model.
func (c *Collection) CreateIndex(ctx context.Context, model ports.IndexModel) error {
	if err := c.ensure(ctx); err != nil {
		return err
	}
	expr, err := fieldExpr(model.Field)
	if err != nil {
		return err
	}
	unique := ""
	if model.Unique {
		unique = "UNIQUE "
	}
	dir := "ASC"
	if model.Order == ports.Descending {
		dir = "DESC"
	}
	stmt := fmt.Sprintf(`CREATE %sINDEX IF NOT EXISTS %s ON %s (%s %s)`,
		unique, quoteIdent(c.table+"."+model.Name), quoteIdent(c.table), expr, dir)
	if _, err := c.client.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create index %s on %s: %w", model.Name, c.name, translate(err))
	}
	c.client.logger.Debug(ctx, "Index created", map[string]interface{}{"collection": c.name, "index": model.Name})
	return nil
}

// --- Helpers ---

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// fieldExpr turns a dotted document path into a json_extract expression.
func fieldExpr(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid document field %q", field)
	}
	return fmt.Sprintf(`json_extract(doc, '$.%s')`, field), nil
}

func buildWhere(filter ports.Filter) (string, []interface{}, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	clauses := make([]string, 0, len(filter))
	args := make([]interface{}, 0, len(filter))
	for _, cond := range filter {
		expr, err := fieldExpr(cond.Field)
		if err != nil {
			return "", nil, err
		}
		switch cond.Op {
		case ports.OpEq:
			clauses = append(clauses, expr+" = ?")
		case ports.OpGt:
			clauses = append(clauses, expr+" > ?")
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %d", cond.Op)
		}
		args = append(args, cond.Value)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// translate maps driver errors onto the standard persistence errors.
func translate(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.ExtendedCode == sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%v: %w", err, ports.ErrDuplicateKey)
		case se.Code == sqlite3.ErrCantOpen, se.Code == sqlite3.ErrNotADB:
			return fmt.Errorf("%v: %w", err, ports.ErrConnection)
		}
	}
	return err
}
