package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Zuo-Peng/cs/internal/scan"
	"github.com/Zuo-Peng/cs/internal/session"
)

// The snapshot is a whole SQLite database written once per run. It is
// built at a temporary path and renamed into place, so readers see either
// the previous or the next complete file. No WAL: the file must be
// self-contained when renamed.
const schema = `
PRAGMA journal_mode = DELETE;
PRAGMA synchronous = FULL;

CREATE TABLE meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE partitions (
    source          TEXT PRIMARY KEY,
    history_entries INTEGER NOT NULL DEFAULT 0,
    skipped_lines   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE fingerprints (
    source   TEXT NOT NULL,
    path     TEXT NOT NULL,
    size     INTEGER NOT NULL,
    mtime_ns INTEGER NOT NULL,
    hash     INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source, path)
);

CREATE TABLE sessions (
    source            TEXT NOT NULL,
    id                TEXT NOT NULL,
    project_path      TEXT NOT NULL DEFAULT '',
    started_at_ms     INTEGER NOT NULL DEFAULT 0,
    last_active_at_ms INTEGER NOT NULL DEFAULT 0,
    model             TEXT NOT NULL DEFAULT '',
    reasoning_effort  TEXT NOT NULL DEFAULT '',
    transcript_ref    TEXT NOT NULL DEFAULT '',
    title             TEXT NOT NULL DEFAULT '',
    size_bytes        INTEGER NOT NULL DEFAULT 0,
    message_count     INTEGER NOT NULL DEFAULT 0,
    orphaned          INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source, id)
);
`

// Load reads a snapshot. Any failure means the caller must rebuild: a
// missing file is ErrNoCache, another schema is ErrSchemaMismatch, anything
// else is a decode error.
func Load(path string) (*Snapshot, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCache
	} else if err != nil {
		return nil, fmt.Errorf("stat cache: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer db.Close()

	var ver string
	if err := db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver); err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if ver != strconv.Itoa(SchemaVersion) {
		return nil, fmt.Errorf("%w: have %s, want %d", ErrSchemaMismatch, ver, SchemaVersion)
	}

	snap := &Snapshot{
		SchemaVersion: SchemaVersion,
		Partitions:    make(map[session.Source]Partition),
	}
	if err := loadPartitions(db, snap); err != nil {
		return nil, err
	}
	if err := loadFingerprints(db, snap); err != nil {
		return nil, err
	}
	if err := loadSessions(db, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func loadPartitions(db *sql.DB, snap *Snapshot) error {
	rows, err := db.Query("SELECT source, history_entries, skipped_lines FROM partitions")
	if err != nil {
		return fmt.Errorf("read partitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Partition
		var src string
		if err := rows.Scan(&src, &p.HistoryEntries, &p.SkippedLines); err != nil {
			return fmt.Errorf("read partitions: %w", err)
		}
		p.Source = session.Source(src)
		if !p.Source.Valid() {
			return fmt.Errorf("read partitions: unknown source %q", src)
		}
		snap.Partitions[p.Source] = p
	}
	return rows.Err()
}

func loadFingerprints(db *sql.DB, snap *Snapshot) error {
	rows, err := db.Query("SELECT source, path, size, mtime_ns, hash FROM fingerprints ORDER BY source, path")
	if err != nil {
		return fmt.Errorf("read fingerprints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			src  string
			fp   scan.Fingerprint
			hash int64
		)
		if err := rows.Scan(&src, &fp.Path, &fp.Size, &fp.ModTime, &hash); err != nil {
			return fmt.Errorf("read fingerprints: %w", err)
		}
		fp.Hash = uint64(hash)
		p, ok := snap.Partitions[session.Source(src)]
		if !ok {
			return fmt.Errorf("read fingerprints: no partition for %q", src)
		}
		p.Fingerprints = append(p.Fingerprints, fp)
		snap.Partitions[p.Source] = p
	}
	return rows.Err()
}

func loadSessions(db *sql.DB, snap *Snapshot) error {
	rows, err := db.Query(`
		SELECT source, id, project_path, started_at_ms, last_active_at_ms, model,
		       reasoning_effort, transcript_ref, title, size_bytes, message_count, orphaned
		FROM sessions ORDER BY source, id`)
	if err != nil {
		return fmt.Errorf("read sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s               session.Session
			src             string
			started, active int64
			orphaned        int
		)
		if err := rows.Scan(&src, &s.ID, &s.ProjectPath, &started, &active, &s.Model,
			&s.ReasoningEffort, &s.TranscriptRef, &s.Title, &s.SizeBytes, &s.MessageCount, &orphaned); err != nil {
			return fmt.Errorf("read sessions: %w", err)
		}
		s.Source = session.Source(src)
		s.StartedAt = fromMillis(started)
		s.LastActiveAt = fromMillis(active)
		s.Orphaned = orphaned != 0
		p, ok := snap.Partitions[s.Source]
		if !ok {
			return fmt.Errorf("read sessions: no partition for %q", src)
		}
		p.Sessions = append(p.Sessions, s)
		snap.Partitions[p.Source] = p
	}
	return rows.Err()
}

// Store writes snap to path atomically. The temporary database lives in the
// same directory so the final rename never crosses filesystems.
func Store(path string, snap *Snapshot) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	sweepTemps(path, time.Now().Add(-staleTempAge))

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
			_ = os.Remove(tmpPath + "-journal")
		}
	}()

	if err := writeDB(tmpPath, snap); err != nil {
		return err
	}
	if err := syncFile(tmpPath); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp cache: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename cache: %w", err)
	}
	return syncDir(dir)
}

// staleTempAge is how old a temp database must be before another Store
// treats it as left behind by a killed process.
const staleTempAge = time.Hour

// sweepTemps removes temp databases (and their journals) for path last
// modified before cutoff.
func sweepTemps(path string, cutoff time.Time) {
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(m); err == nil {
			slog.Debug("Removed stale cache temp file", "path", m)
		}
	}
}

func writeDB(path string, snap *Snapshot) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open temp cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := fill(db, snap); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}
	return nil
}

func fill(db *sql.DB, snap *Snapshot) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init cache schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES ('schema_version', ?), ('written_at', ?)",
		strconv.Itoa(snap.SchemaVersion), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	partStmt, err := tx.Prepare("INSERT INTO partitions (source, history_entries, skipped_lines) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare partitions: %w", err)
	}
	defer partStmt.Close()

	fpStmt, err := tx.Prepare("INSERT INTO fingerprints (source, path, size, mtime_ns, hash) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare fingerprints: %w", err)
	}
	defer fpStmt.Close()

	sessStmt, err := tx.Prepare(`
		INSERT INTO sessions (source, id, project_path, started_at_ms, last_active_at_ms, model,
		                      reasoning_effort, transcript_ref, title, size_bytes, message_count, orphaned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sessions: %w", err)
	}
	defer sessStmt.Close()

	for _, src := range session.Sources {
		p, ok := snap.Partitions[src]
		if !ok {
			continue
		}
		if _, err := partStmt.Exec(string(src), p.HistoryEntries, p.SkippedLines); err != nil {
			return fmt.Errorf("write partition %s: %w", src, err)
		}
		for _, fp := range p.Fingerprints {
			if _, err := fpStmt.Exec(string(src), fp.Path, fp.Size, fp.ModTime, int64(fp.Hash)); err != nil {
				return fmt.Errorf("write fingerprint %s: %w", fp.Path, err)
			}
		}
		for _, s := range p.Sessions {
			if _, err := sessStmt.Exec(string(src), s.ID, s.ProjectPath, toMillis(s.StartedAt), toMillis(s.LastActiveAt),
				s.Model, s.ReasoningEffort, s.TranscriptRef, s.Title, s.SizeBytes, s.MessageCount, boolInt(s.Orphaned)); err != nil {
				return fmt.Errorf("write session %s: %w", s.ID, err)
			}
		}
	}
	return tx.Commit()
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open temp cache: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp cache: %w", err)
	}
	return f.Close()
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open cache dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync cache dir: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
