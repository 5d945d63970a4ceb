package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/proth-cli/internal/model"
)

// ErrNotFound is returned when a lookup by ID matches nothing.
var ErrNotFound = eris.New("store: not found")

// RecordFilter specifies criteria for listing certification records.
type RecordFilter struct {
	Verdict model.Verdict `json:"verdict,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}

// Store defines the persistence interface for certification evidence.
// Records are append-only: SaveRecord refuses an existing ID and external
// attempts are only ever added.
type Store interface {
	// Records
	SaveRecord(ctx context.Context, rec *model.CertificationRecord) error
	GetRecord(ctx context.Context, id string) (*model.CertificationRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.CertificationRecord, error)
	AppendExternalResult(ctx context.Context, recordID string, res model.ExternalResult) error

	// Ablations
	SaveAblation(ctx context.Context, run *model.AblationRun) error
	ListAblations(ctx context.Context, limit int) ([]model.AblationRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the backend named by driver. The caller still runs Migrate.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

const defaultListLimit = 100

// recordBody serializes the tier evidence without the external attempts,
// which live in their own append-only table.
func recordBody(rec *model.CertificationRecord) ([]byte, error) {
	if rec == nil || rec.N == nil {
		return nil, eris.New("store: record has no N")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	body := *rec
	body.ECPP = nil
	b, err := json.Marshal(body)
	return b, eris.Wrap(err, "store: marshal record")
}

func decodeRecord(body []byte) (*model.CertificationRecord, error) {
	var rec model.CertificationRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal record")
	}
	return &rec, nil
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
