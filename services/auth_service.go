package services

import (
	"fmt"
	"time"

	"secure-chat/auth"
	"secure-chat/errors"
	"secure-chat/repositories"
)

type IAuthService interface {
	Register(email, username, password string) (repositories.User, Token, error)
	Login(email, password string) (repositories.User, Token, error)
}

type AuthService struct {
	directory         repositories.IDirectory
	authTokenDuration time.Duration
}

type Token string

func NewAuthService(directory repositories.IDirectory, authTokenDuration time.Duration) IAuthService {
	return &AuthService{directory: directory, authTokenDuration: authTokenDuration}
}

func (s *AuthService) Register(email, username, password string) (repositories.User, Token, error) {
	valReq := auth.RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	}

	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return repositories.User{}, "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return repositories.User{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	user, err := s.directory.CreateUser(email, username, hashedPassword)
	if err != nil {
		return repositories.User{}, "", err // Propagates ErrUserAlreadyExists / ErrUsernameTaken
	}

	// 4. Generate the initial session token
	token, err := auth.GenerateToken(user.ID, user.Username, s.authTokenDuration)
	if err != nil {
		return repositories.User{}, "", errors.ErrTokenGeneration
	}

	return user, Token(token), nil
}

func (s *AuthService) Login(email, password string) (repositories.User, Token, error) {
	user, err := s.directory.GetUserByEmail(email)
	if err != nil {
		// Do not reveal whether the account exists.
		return repositories.User{}, "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return repositories.User{}, "", errors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Username, s.authTokenDuration)
	if err != nil {
		return repositories.User{}, "", errors.ErrTokenGeneration
	}

	return user, Token(token), nil
}
