package card

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no card matches.
var ErrNotFound = errors.New("card not found")

// Repository persists card metadata.
type Repository interface {
	Create(ctx context.Context, card Card) error
	Get(ctx context.Context, id string) (Card, error)
	GetByProfile(ctx context.Context, profileID string) (Card, error)
	Update(ctx context.Context, card Card) error
}

// PostgresRepository stores cards in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const cardColumns = `id, profile_id, last4, expiry_month, expiry_year, allowance, currency, status,
        device_id, issued_at, last_used_at`

// Create inserts a card record.
func (r *PostgresRepository) Create(ctx context.Context, c Card) error {
	cardID, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	profileID, err := uuid.Parse(c.ProfileID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO cards (`+cardColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		cardID, profileID, c.Last4, c.ExpiryMonth, c.ExpiryYear, c.Allowance, c.Currency, c.Status,
		c.DeviceID, c.IssuedAt.UTC(), c.LastUsedAt)
	return err
}

// Get fetches a card by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Card, error) {
	cardID, err := uuid.Parse(id)
	if err != nil {
		return Card{}, ErrNotFound
	}
	return scanCard(r.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, cardID))
}

// GetByProfile fetches the card issued to a profile.
func (r *PostgresRepository) GetByProfile(ctx context.Context, profileID string) (Card, error) {
	owner, err := uuid.Parse(profileID)
	if err != nil {
		return Card{}, ErrNotFound
	}
	return scanCard(r.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE profile_id = $1`, owner))
}

// Update stores the status and device binding of a card.
func (r *PostgresRepository) Update(ctx context.Context, c Card) error {
	cardID, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE cards SET status = $1, device_id = $2, last_used_at = $3 WHERE id = $4`,
		c.Status, c.DeviceID, c.LastUsedAt, cardID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCard(row pgx.Row) (Card, error) {
	var (
		c        Card
		id       uuid.UUID
		owner    uuid.UUID
		issuedAt time.Time
	)
	err := row.Scan(&id, &owner, &c.Last4, &c.ExpiryMonth, &c.ExpiryYear, &c.Allowance, &c.Currency, &c.Status,
		&c.DeviceID, &issuedAt, &c.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Card{}, ErrNotFound
		}
		return Card{}, err
	}
	c.ID = id.String()
	c.ProfileID = owner.String()
	c.IssuedAt = issuedAt.UTC()
	return c, nil
}
