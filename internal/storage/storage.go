package storage

import (
	"context"

	"github.com/slok/extagger/internal/model"
)

// Repository is the interface for handler persistence.
type Repository interface {
	CreateHandler(ctx context.Context, h model.Handler) error
	GetHandler(ctx context.Context, id string) (*model.Handler, error)
	GetHandlerByName(ctx context.Context, name string) (*model.Handler, error)
	ListHandlers(ctx context.Context) ([]model.Handler, error)
	DeleteHandler(ctx context.Context, id string) error
}

//go:generate mockery --output storagemock --outpkg storagemock --name Repository --structname MockRepository --filename mock_repository.go
