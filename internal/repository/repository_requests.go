package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"procurement/internal/models"
)

const requestColumns = `
	id,
	title,
	description,
	requester,
	template_id,
	status,
	created_at,
	updated_at
`

func (repo *Repository) AddRequest(ctx context.Context, r models.Request) (models.Request, error) {
	query := `
	INSERT INTO requests
		(title, description, requester, template_id, status)
	VALUES
		($1, $2, $3, $4, $5)
	RETURNING` + requestColumns

	var result models.Request
	err := repo.q.QueryRowxContext(ctx, query, r.Title, r.Description, r.Requester, r.TemplateId, r.Status).StructScan(&result)
	if err != nil {
		return models.Request{}, fmt.Errorf("repository.Repository.AddRequest: %w", err)
	}
	return result, nil
}

func (repo *Repository) GetRequest(ctx context.Context, id string) (models.Request, error) {
	var request models.Request
	query := `SELECT` + requestColumns + `FROM requests WHERE id = $1`

	err := repo.q.GetContext(ctx, &request, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return request, fmt.Errorf("repository.Repository.GetRequest: no request found by id %s, %w", id, sql.ErrNoRows)
	} else if err != nil {
		return request, fmt.Errorf("repository.Repository.GetRequest: %w", err)
	}
	return request, nil
}

func (repo *Repository) GetRequests(ctx context.Context, limit, offset int, status models.RequestStatus) ([]models.Request, error) {
	query := `SELECT` + requestColumns + `
	FROM requests
	WHERE ($3::text = '' OR status = $3::text)
	ORDER BY created_at DESC
	LIMIT $1
	OFFSET $2
	`

	var lim interface{}
	if limit > 0 {
		lim = limit
	}

	requests := []models.Request{}
	err := repo.q.SelectContext(ctx, &requests, query, lim, offset, string(status))
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetRequests: %w", err)
	}
	return requests, nil
}

func (repo *Repository) SetRequestStatus(ctx context.Context, id string, status models.RequestStatus) error {
	res, err := repo.q.ExecContext(ctx, "UPDATE requests SET (status, updated_at) = ($1, CURRENT_TIMESTAMP) WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("repository.Repository.SetRequestStatus: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("repository.Repository.SetRequestStatus: %w", err)
	}
	if !ok {
		return fmt.Errorf("repository.Repository.SetRequestStatus: no request found by id %s, %w", id, sql.ErrNoRows)
	}
	return nil
}

func (repo *Repository) DeleteRequest(ctx context.Context, id string) error {
	_, err := repo.q.ExecContext(ctx, "DELETE FROM requests WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteRequest: %w", err)
	}
	return nil
}
