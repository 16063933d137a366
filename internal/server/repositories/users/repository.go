package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository is the durable credential store.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.UserRecord, error)
	Insert(ctx context.Context, user *models.UserRecord) error
	Ping(ctx context.Context) error
}
