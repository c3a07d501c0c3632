package services

import (
	"fmt"

	"feed-lab/auth"
	"feed-lab/errors"
	"feed-lab/repositories"
)

type IAuthService interface {
	Login(username, password string) (Token, repositories.User, error)
	Register(username, password string) (Token, repositories.User, error)
}

type Token string

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         auth.Tokens
}

func NewAuthService(repo repositories.IUserRepository, tokens auth.Tokens) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, password string) (Token, repositories.User, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Password: password,
	}

	// Validate business rules before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", repositories.User{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens in the service layer to keep the repository unaware of
	// plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", repositories.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(username, hashedPassword)
	if err != nil {
		return "", repositories.User{}, err // Propagates ErrUserAlreadyExists if the name is taken
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", repositories.User{}, errors.ErrTokenGeneration
	}

	return Token(token), user, nil
}

func (s *AuthService) Login(username, password string) (Token, repositories.User, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", repositories.User{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", repositories.User{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", repositories.User{}, errors.ErrTokenGeneration
	}

	return Token(token), user, nil
}
