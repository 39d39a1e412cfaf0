package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const EventOrderConfirmed = "order_confirmed"

type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusReviewed   AttemptStatus = "REVIEWED"
	AttemptStatusFailed     AttemptStatus = "FAILED"
	AttemptStatusConfirmed  AttemptStatus = "CONFIRMED"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

// StepRecord is one saga step outcome of a checkout attempt.
type StepRecord struct {
	AttemptID string
	SessionID string
	OrderID   int64
	Step      string
	Outcome   string
	Detail    string
	Status    AttemptStatus
}

// Confirmation describes a placed order. It becomes an outbox event.
type Confirmation struct {
	AttemptID         string
	SessionID         string
	OrderID           int64
	Status            string
	GrandTotal        string
	Currency          string
	CheckoutSessionID string
	ConfirmedAt       time.Time
}

type OutboxEvent struct {
	ID          int
	AggregateId string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type Repository struct {
	db  *sql.DB
	log logrus.FieldLogger
}

func NewRepository(cred *Credentials, log logrus.FieldLogger) (*Repository, error) {
	sslMode := cred.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName,
		sslMode)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	log.WithField("host", cred.Host).Info("connected to postgres")
	return &Repository{db: db, log: log}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordStep upserts the attempt row and appends the step.
func (r *Repository) RecordStep(ctx context.Context, rec StepRecord) error {
	attemptID, err := uuid.Parse(rec.AttemptID)
	if err != nil {
		return fmt.Errorf("invalid attempt id %q: %w", rec.AttemptID, err)
	}
	status := rec.Status
	if status == "" {
		status = AttemptStatusInProgress
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertAttempt(ctx, tx, attemptID, rec.SessionID, rec.OrderID, status); err != nil {
		return err
	}

	const insertStep = `INSERT INTO checkout_steps (attempt_id, step, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, NOW())`
	if _, err := tx.ExecContext(ctx, insertStep, attemptID, rec.Step, rec.Outcome, rec.Detail); err != nil {
		return fmt.Errorf("failed to insert checkout step: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkout step: %w", err)
	}
	return nil
}

// RecordConfirmed marks the attempt confirmed and writes the order_confirmed
// outbox event in the same transaction.
func (r *Repository) RecordConfirmed(ctx context.Context, c Confirmation) error {
	attemptID := uuid.New()
	if c.AttemptID != "" {
		parsed, err := uuid.Parse(c.AttemptID)
		if err != nil {
			return fmt.Errorf("invalid attempt id %q: %w", c.AttemptID, err)
		}
		attemptID = parsed
	}
	if c.ConfirmedAt.IsZero() {
		c.ConfirmedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(map[string]interface{}{
		"attempt_id":          attemptID.String(),
		"session_id":          c.SessionID,
		"order_id":            c.OrderID,
		"status":              c.Status,
		"grand_total":         c.GrandTotal,
		"currency":            c.Currency,
		"checkout_session_id": c.CheckoutSessionID,
		"confirmed_at":        c.ConfirmedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal confirmation payload: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertAttempt(ctx, tx, attemptID, c.SessionID, c.OrderID, AttemptStatusConfirmed); err != nil {
		return err
	}

	const insertEvent = `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, NOW())`
	aggregateID := strconv.FormatInt(c.OrderID, 10)
	if _, err := tx.ExecContext(ctx, insertEvent, aggregateID, EventOrderConfirmed, payload); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return nil
}

func upsertAttempt(ctx context.Context, tx *sql.Tx, id uuid.UUID, sessionID string, orderID int64, status AttemptStatus) error {
	const query = `INSERT INTO checkout_attempts (id, session_id, order_id, status, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3::BIGINT, 0), $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			order_id = COALESCE(NULLIF($3::BIGINT, 0), checkout_attempts.order_id),
			status = $4,
			updated_at = NOW()`
	if _, err := tx.ExecContext(ctx, query, id, sessionID, orderID, status); err != nil {
		return fmt.Errorf("failed to upsert checkout attempt: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	const query = `SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.AggregateId, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = payload
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int) error {
	const query = `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1 AND processed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// PurgeProcessedEvents deletes published events processed before the cutoff.
func (r *Repository) PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM outbox_events WHERE processed_at IS NOT NULL AND processed_at < $1`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox events: %w", err)
	}
	return res.RowsAffected()
}
