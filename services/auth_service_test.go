package services

import (
	"strings"
	"testing"
	"time"

	"secure-chat/auth"
	"secure-chat/errors"
	"secure-chat/mocks"
	"secure-chat/repositories"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIDirectory(ctrl)
	service := NewAuthService(directory, time.Hour)

	// Given a directory that accepts the new account
	directory.EXPECT().
		CreateUser("alice@example.com", "alice", gomock.Any()).
		DoAndReturn(func(email, username, passwordHash string) (repositories.User, error) {
			// The service must never hand a plain password to the repository
			req.True(strings.HasPrefix(passwordHash, "$argon2id$"))
			return repositories.User{ID: 1, Email: email, Username: username, PasswordHash: passwordHash}, nil
		}).
		Times(1)

	// When registering
	user, token, err := service.Register("alice@example.com", "alice", "ComplexPass123!")

	// Then the account and a valid session token come back
	req.NoError(err)
	req.Equal(int64(1), user.ID)
	claims, err := auth.ValidateToken(string(token))
	req.NoError(err)
	req.Equal(int64(1), claims.UserID)
	req.Equal("alice", claims.Username)
}

func TestAuthService_Register_Rejects_Weak_Password(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIDirectory(ctrl)
	service := NewAuthService(directory, time.Hour)

	// No repository call happens when validation fails
	_, _, err := service.Register("alice@example.com", "alice", "weakpassword")
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func TestAuthService_Register_Propagates_Conflicts(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIDirectory(ctrl)
	service := NewAuthService(directory, time.Hour)

	directory.EXPECT().
		CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(repositories.User{}, errors.ErrUserAlreadyExists).
		Times(1)

	_, _, err := service.Register("alice@example.com", "alice", "ComplexPass123!")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestAuthService_Login(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIDirectory(ctrl)
	service := NewAuthService(directory, time.Hour)

	hash, err := auth.HashPassword("ComplexPass123!")
	req.NoError(err)
	stored := repositories.User{ID: 7, Email: "alice@example.com", Username: "alice", PasswordHash: hash}

	directory.EXPECT().GetUserByEmail("alice@example.com").Return(stored, nil).Times(2)

	// Correct password
	user, token, err := service.Login("alice@example.com", "ComplexPass123!")
	req.NoError(err)
	req.Equal(int64(7), user.ID)
	req.NotEmpty(token)

	// Wrong password
	_, _, err = service.Login("alice@example.com", "WrongPass123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestAuthService_Login_Hides_Unknown_Accounts(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIDirectory(ctrl)
	service := NewAuthService(directory, time.Hour)

	directory.EXPECT().
		GetUserByEmail("ghost@example.com").
		Return(repositories.User{}, errors.ErrUserNotFound).
		Times(1)

	// The caller cannot tell a missing account from a bad password
	_, _, err := service.Login("ghost@example.com", "ComplexPass123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}
