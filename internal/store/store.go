// Package store persists validation certificates and the schedules they
// attest in SQLite. Rows are append-only; a creator week keeps every
// certificate ever stored for it and the latest one wins.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"schedforge/internal/logging"
	"schedforge/internal/types"
	"schedforge/internal/validator"
)

// ErrNotFound is returned when no certificate matches a lookup.
var ErrNotFound = errors.New("certificate not found")

// Record is one stored certificate with its schedule.
type Record struct {
	CertificateID string                       `json:"certificate_id"`
	CreatorID     string                       `json:"creator_id"`
	WeekStart     string                       `json:"week_start"`
	Status        types.Status                 `json:"status"`
	QualityScore  float64                      `json:"quality_score"`
	ItemCount     int                          `json:"item_count"`
	FollowupCount int                          `json:"followup_count"`
	GateFailed    string                       `json:"gate_failed,omitempty"`
	IssuedAt      time.Time                    `json:"issued_at"`
	ExpiresAt     time.Time                    `json:"expires_at"`
	StoredAt      time.Time                    `json:"stored_at"`
	Certificate   *types.ValidationCertificate `json:"certificate,omitempty"`
	Schedule      *types.ScheduleOutput        `json:"schedule,omitempty"`
}

// Store is the SQLite certificate store.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates or opens the certificate database at dbPath.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("certificate store opened at %s (schema v%d)", dbPath, GetSchemaVersion(db))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS certificates (
		certificate_id TEXT PRIMARY KEY,
		creator_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		status TEXT NOT NULL,
		quality_score REAL NOT NULL,
		schedule_hash TEXT NOT NULL,
		signature TEXT NOT NULL,
		issued_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		stored_at DATETIME NOT NULL,
		certificate_json TEXT NOT NULL,
		schedule_json TEXT NOT NULL,
		item_count INTEGER NOT NULL DEFAULT 0,
		followup_count INTEGER NOT NULL DEFAULT 0,
		gate_failed TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_certificates_week ON certificates(creator_id, week_start, stored_at);
	CREATE INDEX IF NOT EXISTS idx_certificates_status ON certificates(status);

	CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER NOT NULL,
		applied_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save stores a certificate and its schedule. Certificates past their
// freshness window are refused with STALE_CERTIFICATE, and a certificate
// that does not attest out is refused as invalid input. Saving the same
// certificate twice is a no-op.
func (s *Store) Save(ctx context.Context, cert *types.ValidationCertificate, out *types.ScheduleOutput) error {
	if cert == nil || out == nil {
		return types.NewStageError(types.StagePersist, types.CodeInvalidInput, "certificate and schedule are required")
	}
	audit := logging.AuditFor(cert.CreatorID, cert.WeekStart)

	now := s.now()
	if !cert.IsFresh(now) {
		audit.CertificateStale(cert.CertificateID, now.Sub(cert.Timestamp))
		return types.NewStageError(types.StagePersist, types.CodeStaleCertificate,
			"certificate %s expired at %s", cert.CertificateID, cert.ExpiresAt.Format(time.RFC3339))
	}
	if err := validator.Verify(cert, out); err != nil {
		return &types.StageError{Stage: types.StagePersist, Code: types.CodeInvalidInput, Detail: cert.CertificateID, Err: err}
	}

	certJSON, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("failed to marshal certificate: %w", err)
	}
	schedJSON, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO certificates
		(certificate_id, creator_id, week_start, status, quality_score, schedule_hash, signature,
		 issued_at, expires_at, stored_at, certificate_json, schedule_json, item_count, followup_count, gate_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cert.CertificateID, cert.CreatorID, cert.WeekStart, string(cert.Status), cert.QualityScore,
		cert.ScheduleHash, cert.Signature, cert.Timestamp.UTC(), cert.ExpiresAt.UTC(), now.UTC(),
		string(certJSON), string(schedJSON), cert.ItemCount, cert.FollowupCount, failedGate(cert))
	if err != nil {
		return fmt.Errorf("failed to store certificate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logging.StoreDebug("certificate %s already stored", cert.CertificateID)
		return nil
	}

	audit.CertificateStored(cert.CertificateID)
	logging.StoreDebug("stored %s for %s/%s: %s %.2f", cert.CertificateID, cert.CreatorID, cert.WeekStart, cert.Status, cert.QualityScore)
	return nil
}

func failedGate(cert *types.ValidationCertificate) string {
	n := len(cert.GatesChecked)
	if n == 0 {
		return ""
	}
	last := cert.GatesChecked[n-1]
	if cert.Gates[last] {
		return ""
	}
	return string(last)
}

const recordColumns = `certificate_id, creator_id, week_start, status, quality_score, item_count,
	followup_count, gate_failed, issued_at, expires_at, stored_at, certificate_json, schedule_json`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var status, certJSON, schedJSON string
	if err := row.Scan(&r.CertificateID, &r.CreatorID, &r.WeekStart, &status, &r.QualityScore,
		&r.ItemCount, &r.FollowupCount, &r.GateFailed, &r.IssuedAt, &r.ExpiresAt, &r.StoredAt,
		&certJSON, &schedJSON); err != nil {
		return nil, err
	}
	r.Status = types.Status(status)

	r.Certificate = &types.ValidationCertificate{}
	if err := json.Unmarshal([]byte(certJSON), r.Certificate); err != nil {
		return nil, fmt.Errorf("certificate %s: %w", r.CertificateID, err)
	}
	r.Schedule = &types.ScheduleOutput{}
	if err := json.Unmarshal([]byte(schedJSON), r.Schedule); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", r.CertificateID, err)
	}
	return &r, nil
}

// Get returns the certificate with the given id.
func (s *Store) Get(ctx context.Context, certID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM certificates WHERE certificate_id = ?`, certID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, certID)
	}
	return r, err
}

// Latest returns the most recently stored certificate for a creator week.
func (s *Store) Latest(ctx context.Context, creatorID, weekStart string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM certificates
		WHERE creator_id = ? AND week_start = ?
		ORDER BY stored_at DESC, rowid DESC
		LIMIT 1
	`, creatorID, weekStart)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, creatorID, weekStart)
	}
	return r, err
}

// List returns every certificate stored for a creator, oldest week first
// and in storage order within a week.
func (s *Store) List(ctx context.Context, creatorID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM certificates
		WHERE creator_id = ?
		ORDER BY week_start, stored_at, rowid
	`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
