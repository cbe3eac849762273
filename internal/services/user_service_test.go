package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/notifystream/internal/database/testutil"
	apperrors "github.com/charlesng35/notifystream/pkg/errors"
)

func TestUserServiceEnsureCreatesOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()

	created, err := svc.Ensure(ctx, " user-1 ", "")
	require.NoError(t, err)
	require.Equal(t, "user-1", created.ID)
	require.Equal(t, "user-1", created.Username)

	again, err := svc.Ensure(ctx, "user-1", "renamed")
	require.NoError(t, err)
	require.Equal(t, "user-1", again.Username)

	var count int64
	require.NoError(t, db.Table("users").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestUserServiceEnsureRejectsTakenUsername(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	testutil.MustCreateUser(t, db, "user-1", "alice")
	svc, err := NewUserService(db)
	require.NoError(t, err)

	_, err = svc.Ensure(context.Background(), "user-2", "alice")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, ErrUsernameTaken.Code, appErr.Code)

	_, err = svc.Ensure(context.Background(), "  ", "bob")
	require.Error(t, err)
}

func TestUserServiceGet(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	testutil.MustCreateUser(t, db, "user-1", "alice")
	svc, err := NewUserService(db)
	require.NoError(t, err)

	user, err := svc.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	_, err = svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = NewUserService(nil)
	require.Error(t, err)
}
