package userservicetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/doubles/internal/descriptor"
	"github.com/roach88/doubles/internal/double"
	"github.com/roach88/doubles/internal/userservice"
)

func TestDescriptorsMatchCUE(t *testing.T) {
	descs, err := descriptor.LoadFile("testdata/users.cue")
	require.NoError(t, err)

	assert.Equal(t, []double.Descriptor{RepositoryDescriptor, EmailServiceDescriptor}, descs)
}

func TestRepositoryForwardsCalls(t *testing.T) {
	f := NewFixture(t)
	ctx := context.Background()
	id := uuid.MustParse("0199a3c4-0000-7000-8000-000000000001")
	ada := userservice.User{ID: id, Email: "ada@example.com", Name: "Ada"}
	boom := errors.New("boom")

	f.Repo.On("ExistsByEmail", "ada@example.com").Return(true)
	f.Repo.On("FindByID", id).Return(ada, true)
	f.Repo.On("Delete", double.Any()).Fail(boom)
	f.Repo.On("FindAll").Return([]userservice.User{ada})

	exists, err := f.Repo.ExistsByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	user, found, err := f.Repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ada, user)

	_, found, err = f.Repo.FindByID(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, f.Repo.Delete(ctx, id), boom)

	users, err := f.Repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []userservice.User{ada}, users)

	f.Set.Verify(double.Call(f.Repo.Double, "FindByID", double.AnyOf[uuid.UUID]()).Times(2))
	assert.Len(t, f.Set.Invocations(), 5)
}

func TestFixtureStrictSet(t *testing.T) {
	ft := &recordingT{}
	f := NewFixture(ft, WithSetOptions(double.WithStrict(true)))

	err := f.Mailer.SendWelcome(context.Background(), userservice.User{Name: "Ada"})

	assert.True(t, double.IsUnstubbedCall(err))
	require.Len(t, ft.errors, 1)
	assert.Contains(t, ft.errors[0], "UNSTUBBED_CALL")

	ft.cleanup()
	assert.Empty(t, f.Set.Invocations())
}

// recordingT collects reported failures instead of failing the test.
type recordingT struct {
	errors   []string
	cleanups []func()
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingT) Cleanup(fn func()) { r.cleanups = append(r.cleanups, fn) }

func (r *recordingT) cleanup() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}
