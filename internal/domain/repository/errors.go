package repository

import "errors"

// Errores que los drivers devuelven sin envolver en contexto de driver, para
// que los services los comparen con errors.Is sin conocer el backend.
var (
	// ErrNotFound: el id o hash no existe, o el artefacto ya expiró o fue consumido.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict: ya existe un registro con esa clave (client_id, hash, request id).
	ErrConflict = errors.New("repository: already exists")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
