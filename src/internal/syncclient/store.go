// FILE: synctrack/src/internal/syncclient/store.go
package syncclient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"synctrack/src/internal/auth"
	"synctrack/src/internal/core"

	"github.com/lixenwraith/log"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.mongodb.org/mongo-driver/bson"
)

// Document is any value that encodes to a BSON document carrying an _id field
type Document any

// StoreOptions configures OpenStore
type StoreOptions struct {
	// Path of the SQLite file backing the store
	Path string

	// Schema declares the store's classes; when empty it is fetched from the backend
	Schema []ClassSchema

	// Clean deletes any existing store files before opening
	Clean bool

	// CompactThreshold in bytes; zero disables compaction on open
	CompactThreshold int64
}

// Store is a local synchronized object store for one user
type Store struct {
	app    *App
	user   auth.User
	path   string
	logger *log.Logger

	mu     sync.Mutex
	db     *sql.DB
	schema []ClassSchema
	closed bool
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS objects (
	class TEXT NOT NULL,
	id TEXT NOT NULL,
	doc BLOB NOT NULL,
	PRIMARY KEY (class, id)
);

CREATE TABLE IF NOT EXISTS pending_writes (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	class TEXT NOT NULL,
	id TEXT NOT NULL,
	doc BLOB NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
	name TEXT PRIMARY KEY,
	class TEXT NOT NULL,
	pos INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
	name TEXT PRIMARY KEY,
	embedded INTEGER NOT NULL DEFAULT 0,
	asymmetric INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_pending_class_id ON pending_writes(class, id);
`

// OpenStore opens (creating if needed) the local store for user
func (a *App) OpenStore(ctx context.Context, user *auth.User, opts StoreOptions) (*Store, error) {
	if err := usableUser(user); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: store path cannot be empty", ErrOpen)
	}

	if opts.Clean {
		if err := removeStoreFiles(opts.Path); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpen, err)
		}
		a.emit(core.SeverityInfo, "Deleted local store %s", opts.Path)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create store directory: %w", ErrOpen, err)
	}

	db, err := openDB(ctx, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	s := &Store{
		app:    a,
		user:   *user,
		path:   opts.Path,
		logger: a.logger,
		db:     db,
	}

	if opts.CompactThreshold > 0 {
		if err := s.compactIfNeeded(ctx, opts.CompactThreshold); err != nil {
			s.logger.Warn("msg", "Store compaction failed",
				"component", "sync_store",
				"path", opts.Path,
				"error", err)
		}
	}

	if err := s.loadSchema(ctx, opts.Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	s.logger.Info("msg", "Store opened",
		"component", "sync_store",
		"path", opts.Path,
		"app_id", a.id,
		"user_id", user.ID,
		"classes", len(s.schema))
	a.emit(core.SeverityInfo, "Opened store %s for user %s", opts.Path, user.ID)

	return s, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; queries are never nested
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, storeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func removeStoreFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}
	return nil
}

// shouldCompact reports whether a file of totalBytes with usedBytes in use is worth compacting
func shouldCompact(totalBytes, usedBytes, threshold int64) bool {
	return totalBytes > threshold && (totalBytes-usedBytes) > threshold
}

func (s *Store) compactIfNeeded(ctx context.Context, threshold int64) error {
	var pageSize, pageCount, freePages int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return err
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return err
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA freelist_count`).Scan(&freePages); err != nil {
		return err
	}

	total := pageSize * pageCount
	used := pageSize * (pageCount - freePages)
	if !shouldCompact(total, used, threshold) {
		return nil
	}

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return err
	}
	s.logger.Info("msg", "Store compacted",
		"component", "sync_store",
		"path", s.path,
		"before_bytes", total,
		"used_bytes", used,
		"duration", time.Since(start))
	return nil
}

func (s *Store) loadSchema(ctx context.Context, declared []ClassSchema) error {
	if len(declared) > 0 {
		s.schema = sortSchema(declared)
		return saveSchema(ctx, s.db, s.schema)
	}

	classes, err := s.app.fetchSchema(ctx, s.user.AccessToken)
	if err == nil {
		s.schema = sortSchema(classes)
		return saveSchema(ctx, s.db, s.schema)
	}

	cached, cacheErr := loadCachedSchema(ctx, s.db)
	if cacheErr != nil || len(cached) == 0 {
		return fmt.Errorf("failed to fetch schema: %w", err)
	}

	s.logger.Warn("msg", "Using cached schema",
		"component", "sync_store",
		"path", s.path,
		"error", err)
	s.app.emit(core.SeverityWarn, "Schema fetch failed, using %d cached classes: %v", len(cached), err)
	s.schema = cached
	return nil
}

// Path returns the store's file path
func (s *Store) Path() string {
	return s.path
}

// Schema returns the store's classes sorted by name
func (s *Store) Schema() []ClassSchema {
	out := make([]ClassSchema, len(s.schema))
	copy(out, s.schema)
	return out
}

func (s *Store) class(name string) (ClassSchema, bool) {
	for _, c := range s.schema {
		if c.Name == name {
			return c, true
		}
	}
	return ClassSchema{}, false
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// WriteBatch writes docs of class in one transaction, in order.
// Every document is queued for upload; asymmetric classes are not kept locally.
func (s *Store) WriteBatch(ctx context.Context, class string, docs []Document) error {
	if err := s.checkOpen(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	schema, ok := s.class(class)
	if !ok {
		return fmt.Errorf("%w: unknown class %q", ErrWrite, class)
	}
	if schema.Embedded {
		return fmt.Errorf("%w: class %q is embedded", ErrWrite, class)
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, doc := range docs {
		raw, id, err := encodeDocument(doc)
		if err != nil {
			return fmt.Errorf("%w: document %d: %w", ErrWrite, i, err)
		}

		if !schema.Asymmetric {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO objects (class, id, doc) VALUES (?, ?, ?)
				 ON CONFLICT(class, id) DO UPDATE SET doc = excluded.doc`,
				class, id, []byte(raw)); err != nil {
				return fmt.Errorf("%w: document %d: %w", ErrWrite, i, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pending_writes (class, id, doc, created_at) VALUES (?, ?, ?, ?)`,
			class, id, []byte(raw), now); err != nil {
			return fmt.Errorf("%w: document %d: %w", ErrWrite, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	s.app.emit(core.SeverityTrace, "Wrote %d %s objects", len(docs), class)
	return nil
}

func encodeDocument(doc Document) (bson.Raw, string, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode: %w", err)
	}
	raw := bson.Raw(data)

	idVal, err := raw.LookupErr("_id")
	if err != nil {
		return nil, "", fmt.Errorf("document has no _id")
	}
	return raw, idString(idVal), nil
}

func idString(v bson.RawValue) string {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if str, ok := v.StringValueOK(); ok {
		return str
	}
	return v.String()
}

type pendingRow struct {
	seq   int64
	class string
	doc   []byte
}

type uploadChange struct {
	Class string `bson:"class"`
	Doc   bson.D `bson:"doc"`
}

// UploadAllLocalChanges sends the whole outbox to the backend in one request.
// Uploaded rows are removed only after the backend accepts them.
func (s *Store) UploadAllLocalChanges(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return fmt.Errorf("%w: %w", ErrSync, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT seq, class, doc FROM pending_writes ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("%w: failed to read outbox: %w", ErrSync, err)
	}
	var pending []pendingRow
	for rows.Next() {
		var r pendingRow
		if err := rows.Scan(&r.seq, &r.class, &r.doc); err != nil {
			rows.Close()
			return fmt.Errorf("%w: failed to read outbox: %w", ErrSync, err)
		}
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: failed to read outbox: %w", ErrSync, err)
	}

	if len(pending) == 0 {
		s.app.emit(core.SeverityDebug, "No local changes to upload")
		return nil
	}

	changes := make([]uploadChange, 0, len(pending))
	for _, r := range pending {
		var doc bson.D
		if err := bson.Unmarshal(r.doc, &doc); err != nil {
			return fmt.Errorf("%w: corrupt outbox entry %d: %w", ErrSync, r.seq, err)
		}
		changes = append(changes, uploadChange{Class: r.class, Doc: doc})
	}

	body, err := bson.MarshalExtJSON(bson.M{"changes": changes}, false, false)
	if err != nil {
		return fmt.Errorf("%w: failed to encode changes: %w", ErrSync, err)
	}

	if _, err := s.app.transport.Do(ctx, http.MethodPost, s.app.syncPath("upload"),
		s.user.AccessToken, "application/json", body); err != nil {
		s.app.emit(core.SeverityError, "Upload of %d changes failed: %v", len(pending), err)
		return fmt.Errorf("%w: %w", ErrSync, err)
	}

	maxSeq := pending[len(pending)-1].seq
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_writes WHERE seq <= ?`, maxSeq); err != nil {
		return fmt.Errorf("%w: failed to clear outbox: %w", ErrSync, err)
	}

	s.app.emit(core.SeverityDetail, "Uploaded %d changes", len(pending))
	return nil
}

type downloadRequest struct {
	Subscriptions []Subscription `json:"subscriptions"`
}

type downloadResponse struct {
	Objects []struct {
		Class string   `bson:"class"`
		Doc   bson.Raw `bson:"doc"`
	} `bson:"objects"`
}

// DownloadAllServerChanges replaces the local copy of every subscribed class with the
// backend's objects. Objects with pending local writes are kept as they are.
func (s *Store) DownloadAllServerChanges(ctx context.Context) error {
	subs, err := s.Subscriptions(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSync, err)
	}
	if subs == nil {
		subs = []Subscription{}
	}

	reqBody, err := json.Marshal(downloadRequest{Subscriptions: subs})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSync, err)
	}

	respBody, err := s.app.transport.Do(ctx, http.MethodPost, s.app.syncPath("download"),
		s.user.AccessToken, "application/json", reqBody)
	if err != nil {
		s.app.emit(core.SeverityError, "Download failed: %v", err)
		return fmt.Errorf("%w: %w", ErrSync, err)
	}

	var resp downloadResponse
	if len(respBody) > 0 {
		if err := bson.UnmarshalExtJSON(respBody, false, &resp); err != nil {
			return fmt.Errorf("%w: failed to decode download: %w", ErrSync, err)
		}
	}

	subscribed := make(map[string]bool, len(subs))
	for _, sub := range subs {
		subscribed[sub.Class] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSync, err)
	}
	defer func() { _ = tx.Rollback() }()

	for class := range subscribed {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM objects WHERE class = ?
			 AND id NOT IN (SELECT id FROM pending_writes WHERE class = ?)`,
			class, class); err != nil {
			return fmt.Errorf("%w: failed to reset %s: %w", ErrSync, class, err)
		}
	}

	stored := 0
	for _, obj := range resp.Objects {
		if !subscribed[obj.Class] {
			continue
		}
		idVal, err := obj.Doc.LookupErr("_id")
		if err != nil {
			continue
		}
		id := idString(idVal)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO objects (class, id, doc)
			 SELECT ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM pending_writes WHERE class = ? AND id = ?)
			 ON CONFLICT(class, id) DO UPDATE SET doc = excluded.doc`,
			obj.Class, id, []byte(obj.Doc), obj.Class, id); err != nil {
			return fmt.Errorf("%w: failed to store %s %s: %w", ErrSync, obj.Class, id, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrSync, err)
	}

	s.app.emit(core.SeverityDetail, "Downloaded %d objects for %d subscriptions", stored, len(subs))
	return nil
}

// Count returns the number of local objects of class
func (s *Store) Count(ctx context.Context, class string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects WHERE class = ?`, class).Scan(&n)
	return n, err
}

// Objects returns the local objects of class ordered by id
func (s *Store) Objects(ctx context.Context, class string) ([]bson.M, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM objects WHERE class = ? ORDER BY id`, class)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bson.M
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc bson.M
		if err := bson.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// PendingCount returns the number of writes waiting for upload
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_writes`).Scan(&n)
	return n, err
}

// Close checkpoints the WAL and releases the database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		s.logger.Warn("msg", "Failed to checkpoint WAL",
			"component", "sync_store",
			"path", s.path,
			"error", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close store %s: %w", s.path, err)
	}

	s.logger.Debug("msg", "Store closed",
		"component", "sync_store",
		"path", s.path)
	s.app.emit(core.SeverityDetail, "Closed store %s", s.path)
	return nil
}

func storeFileName(appID, userID string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return r.Replace(appID) + "-" + r.Replace(userID) + ".db"
}

// DefaultStorePath returns the store file for a user of an app under dir
func DefaultStorePath(dir, appID, userID string) string {
	return filepath.Join(dir, storeFileName(appID, userID))
}
