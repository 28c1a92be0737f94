package middlewares

import (
	"context"
	"time"

	"github.com/dropDatabas3/toolgate/internal/scopes"
)

type ctxKey string

const (
	ctxPrincipalKey ctxKey = "principal"
	ctxRequestIDKey ctxKey = "request_id"
)

// Tipos de credencial que resuelve RequireAuth.
const (
	KindAccess  = "access"  // JWT emitido por /token
	KindService = "service" // token opaco de primera parte
)

// Principal es la identidad autenticada de un request.
type Principal struct {
	UserID    string
	Scopes    scopes.Set
	RawToken  string
	ClientID  string
	Kind      string
	ExpiresAt time.Time
}

// WithPrincipal inyecta el principal en el contexto.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// GetPrincipal obtiene el principal. Retorna nil si RequireAuth no corrió
// o el modo opcional dejó pasar un request sin token.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(ctxPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// GetUserID devuelve el sub del principal o "".
func GetUserID(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.UserID
	}
	return ""
}

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, rid)
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}
