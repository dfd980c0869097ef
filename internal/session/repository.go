package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no profile matches.
var ErrNotFound = errors.New("profile not found")

// Repository persists profiles.
type Repository interface {
	Create(ctx context.Context, profile Profile) error
	FindByID(ctx context.Context, id string) (Profile, error)
	FindByPhone(ctx context.Context, phone string) (Profile, error)
	Update(ctx context.Context, profile Profile) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed profile repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `id, phone, status, trust_level, phone_verified, sim_swap_risk, alert_level,
        failure, joined_at, last_verified_at, updated_at`

// Create inserts a new profile.
func (r *PostgresRepository) Create(ctx context.Context, p Profile) error {
	profileID, err := uuid.Parse(p.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO profiles (`+profileColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		profileID, p.Phone, p.Status, p.Trust, p.Security.PhoneVerified, p.Security.SIMSwapRisk, p.Alert,
		p.Failure, p.JoinedAt.UTC(), p.LastVerifiedAt, p.UpdatedAt.UTC())
	return err
}

// FindByID fetches a profile by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Profile, error) {
	profileID, err := uuid.Parse(id)
	if err != nil {
		return Profile{}, ErrNotFound
	}
	return r.scan(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, profileID))
}

// FindByPhone fetches a profile by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Profile, error) {
	return r.scan(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE phone = $1`, phone))
}

// Update overwrites the mutable profile fields.
func (r *PostgresRepository) Update(ctx context.Context, p Profile) error {
	profileID, err := uuid.Parse(p.ID)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE profiles SET status = $1, trust_level = $2, phone_verified = $3,
        sim_swap_risk = $4, alert_level = $5, failure = $6, last_verified_at = $7, updated_at = $8
        WHERE id = $9`,
		p.Status, p.Trust, p.Security.PhoneVerified, p.Security.SIMSwapRisk, p.Alert, p.Failure,
		p.LastVerifiedAt, p.UpdatedAt.UTC(), profileID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scan(row pgx.Row) (Profile, error) {
	var (
		id       uuid.UUID
		p        Profile
		joinedAt time.Time
		updated  time.Time
	)
	err := row.Scan(&id, &p.Phone, &p.Status, &p.Trust, &p.Security.PhoneVerified, &p.Security.SIMSwapRisk,
		&p.Alert, &p.Failure, &joinedAt, &p.LastVerifiedAt, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	p.ID = id.String()
	p.JoinedAt = joinedAt.UTC()
	p.UpdatedAt = updated.UTC()
	return p, nil
}
