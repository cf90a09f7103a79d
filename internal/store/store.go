// Package store persists run metadata and solve results to SQLite. One
// database holds everything: the runs ledger, the Output_* result
// tables, and (when requested) constraint duals. The schema is managed
// by embedded migrations.
package store

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/meridian-energy/horizon.plan/internal/log"
)

// Store wraps the results database.
type Store struct {
	*sql.DB

	path string

	// MigrationsDir overrides the embedded migration files when set.
	MigrationsDir string
}

// Open opens (creating if needed) the results database at path and
// applies the connection pragmas. It does not run migrations; call
// MigrateUp for that.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	return &Store{DB: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Runs returns the run-lifecycle store.
func (s *Store) Runs() *RunStore { return &RunStore{db: s.DB} }

// Results returns the solve-result store.
func (s *Store) Results() *ResultStore { return &ResultStore{db: s.DB} }

// Duals returns the constraint-dual store.
func (s *Store) Duals() *DualStore { return &DualStore{db: s.DB} }

// SnapshotTo writes a consistent copy of the database to dest using
// VACUUM INTO. dest must not already exist.
func (s *Store) SnapshotTo(ctx context.Context, dest string) error {
	if _, err := s.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("store: snapshot to %s: %w", dest, err)
	}
	return nil
}

// AttachAdminRoutes mounts the tailsql SQL console and a backup
// download under /debug/ on mux.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("store: create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+s.path, s.DB, &tailsql.DBOptions{
		Label: "Horizon results DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(s.handleBackup))
	return nil
}

func (s *Store) handleBackup(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponent("store")

	name := fmt.Sprintf("backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(os.TempDir(), name)
	if _, err := s.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		backupFile.Close()
		if err := os.Remove(backupPath); err != nil {
			logger.Warn().Err(err).Str("path", backupPath).Msg("failed to remove backup file")
		}
	}()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		logger.Warn().Err(err).Msg("failed to stream backup")
	}
}
