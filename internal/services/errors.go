package services

import (
	"errors"

	"pestops-bknd/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("already exists")
	ErrNotFound           = repository.ErrNotFound
)
