package helpers

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	httperrors "github.com/dropDatabas3/toolgate/internal/http/errors"
)

const maxFormBody = 64 << 10

// ParseForm parsea un body application/x-www-form-urlencoded limitado a 64KB.
func ParseForm(w http.ResponseWriter, r *http.Request) error {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		return httperrors.ErrInvalidRequest.WithDetail("Content-Type must be application/x-www-form-urlencoded")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		return httperrors.ErrInvalidRequest.WithDetail("malformed form body").WithCause(err)
	}
	return nil
}

// ClientCredentials extrae client_id/client_secret de Basic auth (RFC 6749 §2.3.1,
// valores form-urlencoded) o del body. viaBasic indica de dónde salieron.
func ClientCredentials(r *http.Request) (id, secret string, viaBasic bool) {
	if ah := strings.TrimSpace(r.Header.Get("Authorization")); len(ah) > 6 && strings.EqualFold(ah[:6], "basic ") {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ah[6:]))
		if err == nil {
			if u, p, ok := strings.Cut(string(raw), ":"); ok {
				if du, err := url.QueryUnescape(u); err == nil {
					u = du
				}
				if dp, err := url.QueryUnescape(p); err == nil {
					p = dp
				}
				return u, p, true
			}
		}
	}
	return strings.TrimSpace(r.PostFormValue("client_id")), r.PostFormValue("client_secret"), false
}

// BearerToken extrae el token de "Authorization: Bearer <token>".
// present=false si no hay header; ok=false si el header no tiene esa forma.
func BearerToken(r *http.Request) (token string, present, ok bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" {
		return "", false, false
	}
	scheme, rest, found := strings.Cut(ah, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", true, false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || strings.ContainsAny(rest, " \t") {
		return "", true, false
	}
	return rest, true, true
}
