package oauth

import svc "github.com/dropDatabas3/toolgate/internal/http/services/oauth"

// Controllers agrupa los controllers del dominio OAuth.
type Controllers struct {
	Authorize *AuthorizeController
	Token     *TokenController
	Register  *RegisterController
	WellKnown *WellKnownController
}

func NewControllers(s svc.Services, sessions SessionReader, keys JWKSSource) *Controllers {
	return &Controllers{
		Authorize: NewAuthorizeController(s.Authorize, sessions),
		Token:     NewTokenController(s.Token),
		Register:  NewRegisterController(s.Clients),
		WellKnown: NewWellKnownController(s.Metadata, keys),
	}
}
