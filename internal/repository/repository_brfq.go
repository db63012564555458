package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"procurement/internal/models"
)

const brfqColumns = `
	id,
	title,
	description,
	status,
	deadline,
	currency,
	terms,
	suppliers,
	created_at,
	updated_at
`

//// BRFQ

// AddBrfq inserts the BRFQ together with its items.
func (repo *Repository) AddBrfq(ctx context.Context, b models.Brfq) (models.Brfq, error) {
	query := `
	INSERT INTO brfqs
		(title, description, status, deadline, currency, terms, suppliers)
	VALUES
		($1, $2, $3, $4, $5, $6, $7)
	RETURNING` + brfqColumns

	if b.Status == "" {
		b.Status = models.BrfqDraft
	}
	if b.Suppliers == nil {
		b.Suppliers = []string{}
	}

	var result models.Brfq
	err := repo.InTx(ctx, func(tx *Repository) error {
		err := tx.q.QueryRowxContext(ctx, query,
			b.Title, b.Description, b.Status, b.Deadline, b.Currency, b.Terms, b.Suppliers,
		).StructScan(&result)
		if err != nil {
			return err
		}

		result.Items, err = tx.ReplaceBrfqItems(ctx, result.Id, b.Items)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AddBrfq: %w", err)
	}
	return result, nil
}

func (repo *Repository) GetBrfq(ctx context.Context, id string) (models.Brfq, error) {
	var b models.Brfq
	err := repo.q.GetContext(ctx, &b, "SELECT"+brfqColumns+"FROM brfqs WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return b, fmt.Errorf("repository.Repository.GetBrfq: no brfq found by id %s, %w", id, sql.ErrNoRows)
	} else if err != nil {
		return b, fmt.Errorf("repository.Repository.GetBrfq: %w", err)
	}

	b.Items, err = repo.GetBrfqItems(ctx, id)
	if err != nil {
		return b, fmt.Errorf("repository.Repository.GetBrfq: %w", err)
	}
	return b, nil
}

// UpdateBrfq overwrites the editable header fields. Items and suppliers are left as they are.
func (repo *Repository) UpdateBrfq(ctx context.Context, b models.Brfq) (models.Brfq, error) {
	query := `
	UPDATE brfqs
	SET (title, description, deadline, currency, terms, updated_at) = ($2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
	WHERE id = $1
	RETURNING` + brfqColumns

	var result models.Brfq
	err := repo.q.QueryRowxContext(ctx, query,
		b.Id, b.Title, b.Description, b.Deadline, b.Currency, b.Terms,
	).StructScan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return result, fmt.Errorf("repository.Repository.UpdateBrfq: no brfq found by id %s, %w", b.Id, sql.ErrNoRows)
	} else if err != nil {
		return result, fmt.Errorf("repository.Repository.UpdateBrfq: %w", err)
	}
	return result, nil
}

//// Items

func (repo *Repository) GetBrfqItems(ctx context.Context, brfqId string) ([]models.BrfqItem, error) {
	items := []models.BrfqItem{}
	query := "SELECT id, brfq_id, name, quantity, unit, specification FROM brfq_items WHERE brfq_id = $1 ORDER BY name, id"

	err := repo.q.SelectContext(ctx, &items, query, brfqId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetBrfqItems: %w", err)
	}
	return items, nil
}

// ReplaceBrfqItems deletes every item of the BRFQ and bulk inserts the given list.
func (repo *Repository) ReplaceBrfqItems(ctx context.Context, brfqId string, items []models.BrfqItem) ([]models.BrfqItem, error) {
	_, err := repo.q.ExecContext(ctx, "DELETE FROM brfq_items WHERE brfq_id = $1", brfqId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ReplaceBrfqItems: %w", err)
	}

	if len(items) == 0 {
		return []models.BrfqItem{}, nil
	}

	rows := make([]models.BrfqItem, len(items))
	for i, item := range items {
		item.BrfqId = brfqId
		rows[i] = item
	}

	query := `
	INSERT INTO brfq_items (brfq_id, name, quantity, unit, specification)
	VALUES (:brfq_id, :name, :quantity, :unit, :specification)
	`
	_, err = sqlx.NamedExecContext(ctx, repo.q, query, rows)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ReplaceBrfqItems: %w", err)
	}

	result, err := repo.GetBrfqItems(ctx, brfqId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ReplaceBrfqItems: %w", err)
	}
	return result, nil
}

//// Suppliers

func (repo *Repository) AddSupplier(ctx context.Context, s models.Supplier) (models.Supplier, error) {
	var result models.Supplier
	err := repo.q.QueryRowxContext(ctx,
		"INSERT INTO suppliers (name, email) VALUES ($1, $2) RETURNING id, name, email, created_at",
		s.Name, s.Email,
	).StructScan(&result)
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AddSupplier: %w", err)
	}
	return result, nil
}

func (repo *Repository) GetSupplier(ctx context.Context, id string) (models.Supplier, bool, error) {
	var s models.Supplier
	err := repo.q.GetContext(ctx, &s, "SELECT id, name, email, created_at FROM suppliers WHERE id::text = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return s, false, nil
	} else if err != nil {
		return s, false, fmt.Errorf("repository.Repository.GetSupplier: %w", err)
	}
	return s, true, nil
}
