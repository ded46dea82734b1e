package repository

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrOutOfBounds   = errors.New("score would leave allowed bounds")
)
