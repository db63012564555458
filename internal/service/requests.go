package service

import (
	"context"
	"fmt"
	"strings"

	"procurement/internal/models"
)

func (s *Service) CreateRequest(ctx context.Context, request models.Request) (models.Request, error) {
	request.Title = strings.TrimSpace(request.Title)
	if request.Title == "" {
		return request, fmt.Errorf("service.Service.CreateRequest: %w", validation("title is required"))
	}

	if request.TemplateId != nil {
		if *request.TemplateId == "" {
			request.TemplateId = nil
		} else if _, err := s.store.GetTemplate(ctx, *request.TemplateId); err != nil {
			return request, fmt.Errorf("service.Service.CreateRequest: %w", notFound(err, models.ErrNoTemplate))
		}
	}

	request.Status = models.RequestDraft
	request, err := s.store.AddRequest(ctx, request)
	if err != nil {
		return request, fmt.Errorf("service.Service.CreateRequest: %w", err)
	}
	return request, nil
}

func (s *Service) GetRequest(ctx context.Context, id string) (models.Request, error) {
	request, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return request, fmt.Errorf("service.Service.GetRequest: %w", notFound(err, models.ErrNoRequest))
	}
	return request, nil
}

func (s *Service) GetRequests(ctx context.Context, limit, offset int, status models.RequestStatus) ([]models.Request, error) {
	if status != "" && !models.ValidRequestStatus(status) {
		return nil, fmt.Errorf("service.Service.GetRequests: %w", validation("unknown request status '%s'", status))
	}

	requests, err := s.store.GetRequests(ctx, limit, offset, status)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetRequests: %w", err)
	}
	return requests, nil
}
