package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica una violación de unicidad (email, chip, sesión abierta).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica datos de entrada inválidos.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
