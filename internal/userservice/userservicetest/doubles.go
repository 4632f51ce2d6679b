// Package userservicetest provides doubles for the collaborators of
// userservice.Service and a fixture that wires them together.
package userservicetest

import (
	"context"

	"github.com/google/uuid"

	"github.com/roach88/doubles/internal/double"
	"github.com/roach88/doubles/internal/userservice"
)

// Descriptors of the collaborator interfaces. Contexts are not recorded.
var (
	RepositoryDescriptor = double.Describe("UserRepository",
		double.M("ExistsByEmail", 1),
		double.M("Save", 1),
		double.M("FindByID", 1),
		double.M("Delete", 1),
		double.M("FindAll", 0),
	)
	EmailServiceDescriptor = double.Describe("EmailService",
		double.M("SendWelcome", 1),
	)
)

// Repository is a userservice.Repository double.
type Repository struct {
	*double.Double
}

var _ userservice.Repository = (*Repository)(nil)

// NewRepository creates a Repository double in set.
func NewRepository(set *double.Set) *Repository {
	return &Repository{Double: set.NewDouble(RepositoryDescriptor)}
}

func (r *Repository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	out := r.Called("ExistsByEmail", email)
	return out.Bool(0), out.Failure()
}

func (r *Repository) Save(_ context.Context, user userservice.User) (userservice.User, error) {
	out := r.Called("Save", user)
	return double.Value[userservice.User](out, 0), out.Failure()
}

func (r *Repository) FindByID(_ context.Context, id uuid.UUID) (userservice.User, bool, error) {
	out := r.Called("FindByID", id)
	return double.Value[userservice.User](out, 0), out.Bool(1), out.Failure()
}

func (r *Repository) Delete(_ context.Context, id uuid.UUID) error {
	return r.Called("Delete", id).Failure()
}

func (r *Repository) FindAll(_ context.Context) ([]userservice.User, error) {
	out := r.Called("FindAll")
	return double.Value[[]userservice.User](out, 0), out.Failure()
}

// EmailService is a userservice.EmailService double.
type EmailService struct {
	*double.Double
}

var _ userservice.EmailService = (*EmailService)(nil)

// NewEmailService creates an EmailService double in set.
func NewEmailService(set *double.Set) *EmailService {
	return &EmailService{Double: set.NewDouble(EmailServiceDescriptor)}
}

func (m *EmailService) SendWelcome(_ context.Context, user userservice.User) error {
	return m.Called("SendWelcome", user).Failure()
}
