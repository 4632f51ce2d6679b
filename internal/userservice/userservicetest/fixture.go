package userservicetest

import (
	"github.com/roach88/doubles/internal/double"
	"github.com/roach88/doubles/internal/userservice"
)

// Fixture is a Service wired to doubles of its collaborators.
type Fixture struct {
	Set     *double.Set
	Repo    *Repository
	Mailer  *EmailService
	Service *userservice.Service
}

// Config holds the options of a Fixture.
type Config struct {
	SetOptions     []double.Option
	ServiceOptions []userservice.Option
}

// FixtureOption configures NewFixture.
type FixtureOption func(*Config)

// WithSetOptions passes options to double.NewSet.
func WithSetOptions(opts ...double.Option) FixtureOption {
	return func(c *Config) { c.SetOptions = append(c.SetOptions, opts...) }
}

// WithServiceOptions passes options to userservice.New.
func WithServiceOptions(opts ...userservice.Option) FixtureOption {
	return func(c *Config) { c.ServiceOptions = append(c.ServiceOptions, opts...) }
}

// NewFixture creates the doubles and the service under test. The doubles
// are disposed through t.Cleanup.
func NewFixture(t double.TestingT, opts ...FixtureOption) *Fixture {
	t.Helper()

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	set := double.NewSet(t, cfg.SetOptions...)
	repo := NewRepository(set)
	mailer := NewEmailService(set)

	return &Fixture{
		Set:     set,
		Repo:    repo,
		Mailer:  mailer,
		Service: userservice.New(repo, mailer, cfg.ServiceOptions...),
	}
}
