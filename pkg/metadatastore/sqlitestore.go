package metadatastore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/inferd-ai/inferd-go/pkg/models"
)

// SQLiteStore provides SQLite-based persistence for model descriptors,
// pipeline definitions and training-job history
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based storage instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes anyway, so keep the pool small
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryOnBusy retries a database operation if it fails due to SQLITE_BUSY.
// Safety net on top of the busy_timeout pragma.
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if err.Error() == "database is locked (5) (SQLITE_BUSY)" {
			backoff := time.Duration(10*(1<<uint(i))) * time.Millisecond
			time.Sleep(backoff)
			continue
		}
		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

// initSchema creates the database schema if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS serving_models (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		version TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS serving_pipelines (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS training_jobs (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		status TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_training_jobs_model_id ON training_jobs(model_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveModel saves a model descriptor. The handle is never persisted.
func (s *SQLiteStore) SaveModel(model *models.Model) error {
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO serving_models (id, kind, status, version, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			model.ID,
			string(model.Kind),
			string(model.Status),
			model.Version,
			model.CreatedAt,
			string(data),
		)
		if err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		return nil
	}, 5)
}

// GetModel retrieves a model descriptor by ID
func (s *SQLiteStore) GetModel(id string) (*models.Model, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM serving_models WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "model", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	var model models.Model
	if err := json.Unmarshal([]byte(data), &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	return &model, nil
}

// ListModels lists all persisted model descriptors
func (s *SQLiteStore) ListModels() ([]*models.Model, error) {
	rows, err := s.db.Query(`SELECT data FROM serving_models ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var out []*models.Model
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan model row: %w", err)
		}
		var model models.Model
		if err := json.Unmarshal([]byte(data), &model); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model: %w", err)
		}
		out = append(out, &model)
	}
	return out, rows.Err()
}

// DeleteModel removes a model descriptor
func (s *SQLiteStore) DeleteModel(id string) error {
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM serving_models WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete model: %w", err)
		}
		return nil
	}, 5)
}

// SavePipeline saves a pipeline definition. Custom step functions are not
// representable and are dropped by JSON encoding.
func (s *SQLiteStore) SavePipeline(pipeline *models.Pipeline) error {
	data, err := json.Marshal(pipeline)
	if err != nil {
		return fmt.Errorf("failed to marshal pipeline: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO serving_pipelines (id, created_at, data)
		VALUES (?, ?, ?)
	`
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(query, pipeline.ID, pipeline.CreatedAt, string(data))
		if err != nil {
			return fmt.Errorf("failed to save pipeline: %w", err)
		}
		return nil
	}, 5)
}

// GetPipeline retrieves a pipeline definition by ID
func (s *SQLiteStore) GetPipeline(id string) (*models.Pipeline, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM serving_pipelines WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "pipeline", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}

	var pipeline models.Pipeline
	if err := json.Unmarshal([]byte(data), &pipeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline: %w", err)
	}
	return &pipeline, nil
}

// ListPipelines lists all persisted pipeline definitions
func (s *SQLiteStore) ListPipelines() ([]*models.Pipeline, error) {
	rows, err := s.db.Query(`SELECT data FROM serving_pipelines ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	defer rows.Close()

	var out []*models.Pipeline
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline row: %w", err)
		}
		var pipeline models.Pipeline
		if err := json.Unmarshal([]byte(data), &pipeline); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pipeline: %w", err)
		}
		out = append(out, &pipeline)
	}
	return out, rows.Err()
}

// DeletePipeline removes a pipeline definition
func (s *SQLiteStore) DeletePipeline(id string) error {
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM serving_pipelines WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete pipeline: %w", err)
		}
		return nil
	}, 5)
}

// SaveTrainingJob records a training job row. The job manager calls this on
// terminal states only.
func (s *SQLiteStore) SaveTrainingJob(job *models.TrainingJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal training job: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO training_jobs (id, model_id, status, start_time, end_time, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			job.ID,
			job.ModelID,
			string(job.Status),
			job.StartTime,
			job.EndTime,
			string(data),
		)
		if err != nil {
			return fmt.Errorf("failed to save training job: %w", err)
		}
		return nil
	}, 5)
}

// ListTrainingJobs lists training job history for a model, newest first
func (s *SQLiteStore) ListTrainingJobs(modelID string) ([]*models.TrainingJob, error) {
	rows, err := s.db.Query(
		`SELECT data FROM training_jobs WHERE model_id = ? ORDER BY start_time DESC`, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list training jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.TrainingJob
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan training job row: %w", err)
		}
		var job models.TrainingJob
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return nil, fmt.Errorf("failed to unmarshal training job: %w", err)
		}
		out = append(out, &job)
	}
	return out, rows.Err()
}
