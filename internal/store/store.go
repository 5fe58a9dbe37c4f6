// Package store keeps a capture session in a SQLite database as an
// alternative to the YAML dataset file.
//
// Text columns are stored as BLOBs so arguments that are not valid UTF-8
// come back byte-for-byte.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/mrzor/trec/internal/dataset"
	"github.com/mrzor/trec/internal/record"

	_ "modernc.org/sqlite"
)

const (
	valueKindArg = "arg"
	valueKindEnv = "env"
)

// Store handles database operations.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenExisting opens the database at path without creating it. A missing
// file is reported as fs.ErrNotExist.
func OpenExisting(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("failed to open database: %s is not a regular file", path)
	}
	return Open(path)
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			package TEXT NOT NULL,
			version TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS records (
			seq INTEGER PRIMARY KEY,
			pid_tgid INTEGER NOT NULL,
			comm BLOB,
			file_path BLOB,
			working_dir BLOB,
			flags INTEGER NOT NULL,
			fail_arg INTEGER NOT NULL,
			fail_env INTEGER NOT NULL,
			fail_path INTEGER NOT NULL,
			incomplete_args INTEGER NOT NULL,
			incomplete_envs INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS record_values (
			record_seq INTEGER NOT NULL REFERENCES records(seq) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			idx INTEGER NOT NULL,
			value BLOB,
			PRIMARY KEY (record_seq, kind, idx)
		);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored session with f. Records are finalized first.
func (s *Store) Save(ctx context.Context, f *dataset.File) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // Error already being returned
		}
	}()

	for _, stmt := range []string{"DELETE FROM record_values", "DELETE FROM records", "DELETE FROM session"} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing previous session: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, "INSERT INTO session (id, package, version) VALUES (1, ?, ?)", f.Package, f.Version); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	insertRecord, err := tx.PrepareContext(ctx, `
		INSERT INTO records (seq, pid_tgid, comm, file_path, working_dir, flags,
			fail_arg, fail_env, fail_path, incomplete_args, incomplete_envs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer insertRecord.Close() //nolint:errcheck // Closed with the transaction

	insertValue, err := tx.PrepareContext(ctx,
		"INSERT INTO record_values (record_seq, kind, idx, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing value insert: %w", err)
	}
	defer insertValue.Close() //nolint:errcheck // Closed with the transaction

	for seq, r := range f.Data {
		r.Finalize()
		decoded := r.Decoded()

		//nolint:gosec // pid_tgid is stored bit-for-bit in a signed column
		id := int64(r.Identity)
		if _, err = insertRecord.ExecContext(ctx, seq, id,
			[]byte(r.Caller), []byte(r.Callee), []byte(r.WorkingDir()), r.Flags,
			decoded.FailArg, decoded.FailEnv, decoded.FailPath,
			decoded.IncompleteArgs, decoded.IncompleteEnvs); err != nil {
			return fmt.Errorf("storing record %d: %w", r.Identity, err)
		}

		if err = insertValues(ctx, insertValue, seq, valueKindArg, r.Args); err != nil {
			return err
		}
		if err = insertValues(ctx, insertValue, seq, valueKindEnv, r.Envs); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	return nil
}

func insertValues(ctx context.Context, stmt *sql.Stmt, seq int, kind string, values []string) error {
	for i, v := range values {
		if _, err := stmt.ExecContext(ctx, seq, kind, i, []byte(v)); err != nil {
			return fmt.Errorf("storing %s %d of record #%d: %w", kind, i, seq, err)
		}
	}
	return nil
}

// ErrEmpty is returned by Load when no session was saved.
var ErrEmpty = errors.New("no session stored")

// Load reads the stored session back. Records come back assembled, in the
// order they were saved.
func (s *Store) Load(ctx context.Context) (*dataset.File, error) {
	f := &dataset.File{}
	err := s.db.QueryRowContext(ctx, "SELECT package, version FROM session WHERE id = 1").Scan(&f.Package, &f.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, pid_tgid, comm, file_path, working_dir, flags FROM records ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	bySeq := make(map[int64]*record.TraceRecord)
	for rows.Next() {
		var (
			seq, id                    int64
			comm, filePath, workingDir []byte
			flags                      uint32
		)
		if err := rows.Scan(&seq, &id, &comm, &filePath, &workingDir, &flags); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		//nolint:gosec // Reverses the signed storage of pid_tgid
		r := &record.TraceRecord{
			Identity: record.Identity(uint64(id)),
			Caller:   string(comm),
			Callee:   string(filePath),
			Flags:    flags,
		}
		r.RestoreWorkingDir(string(workingDir))

		bySeq[seq] = r
		f.Data = append(f.Data, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	if err := s.loadValues(ctx, bySeq); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) loadValues(ctx context.Context, bySeq map[int64]*record.TraceRecord) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT record_seq, kind, value FROM record_values ORDER BY record_seq, kind, idx")
	if err != nil {
		return fmt.Errorf("querying record values: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	for rows.Next() {
		var (
			seq   int64
			kind  string
			value []byte
		)
		if err := rows.Scan(&seq, &kind, &value); err != nil {
			return fmt.Errorf("scanning record value: %w", err)
		}

		r, ok := bySeq[seq]
		if !ok {
			return fmt.Errorf("value references unknown record #%d", seq)
		}
		switch kind {
		case valueKindArg:
			r.Args = append(r.Args, string(value))
		case valueKindEnv:
			r.Envs = append(r.Envs, string(value))
		default:
			return fmt.Errorf("unknown value kind %q for record #%d", kind, seq)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating record values: %w", err)
	}
	return nil
}
