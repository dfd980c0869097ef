package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists card transactions.
type Repository interface {
	Create(ctx context.Context, tx Transaction) error
	ListByCard(ctx context.Context, cardID string) ([]Transaction, error)
}

// PostgresRepository stores transactions in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a transaction record.
func (r *PostgresRepository) Create(ctx context.Context, tx Transaction) error {
	txID, err := uuid.Parse(tx.ID)
	if err != nil {
		return err
	}
	cardID, err := uuid.Parse(tx.CardID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO card_transactions (id, card_id, restaurant, amount, display_time, verified, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`, txID, cardID, tx.Restaurant, tx.Amount, tx.When, tx.Verified, tx.CreatedAt.UTC())
	return err
}

// ListByCard returns the newest transactions first.
func (r *PostgresRepository) ListByCard(ctx context.Context, cardID string) ([]Transaction, error) {
	cardUUID, err := uuid.Parse(cardID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, card_id, restaurant, amount, display_time, verified, created_at
        FROM card_transactions WHERE card_id = $1 ORDER BY created_at DESC`, cardUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			tx        Transaction
			id        uuid.UUID
			card      uuid.UUID
			createdAt time.Time
		)
		if err := rows.Scan(&id, &card, &tx.Restaurant, &tx.Amount, &tx.When, &tx.Verified, &createdAt); err != nil {
			return nil, err
		}
		tx.ID = id.String()
		tx.CardID = card.String()
		tx.CreatedAt = createdAt.UTC()
		out = append(out, tx)
	}
	return out, rows.Err()
}
