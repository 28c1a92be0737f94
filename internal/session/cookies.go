package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/toolgate/internal/observability/logger"
)

// CookieOptions: política única para todas las cookies del servidor.
type CookieOptions struct {
	Domain   string
	SameSite string // "", "lax", "strict", "none" (case-insensitive). Default Lax.
	Secure   bool
}

// parseSameSite convierte el string de config a http.SameSite.
func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		// SameSite=None requiere Secure=true en navegadores modernos; no lo forzamos
		// para no romper http://localhost.
		return http.SameSiteNoneMode
	default:
		logger.L().Warn("cookie: SameSite desconocido, usando Lax", logger.String("samesite", s))
		return http.SameSiteLaxMode
	}
}

// BuildCookie construye una cookie HttpOnly, Path=/ con Expires y Max-Age según ttl.
func BuildCookie(name, value string, opts CookieOptions, ttl time.Duration) *http.Cookie {
	ss := parseSameSite(opts.SameSite)
	if ss == http.SameSiteNoneMode && !opts.Secure {
		logger.L().Warn("cookie: SameSite=None sin Secure; algunos navegadores pueden rechazarla",
			logger.String("cookie", name))
	}
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().UTC().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: ss,
	}
	if opts.Domain != "" {
		c.Domain = opts.Domain
	}
	return c
}

// BuildDeletionCookie devuelve una cookie que la "borra" del browser.
// Usa mismo nombre/domain/samesite/secure para que el user-agent la sobreescriba.
func BuildDeletionCookie(name string, opts CookieOptions) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(), // pasado
		MaxAge:   -1,                    // eliminar
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: parseSameSite(opts.SameSite),
	}
	if opts.Domain != "" {
		c.Domain = opts.Domain
	}
	return c
}
