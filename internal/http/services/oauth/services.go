package oauth

// Services agrupa los services del dominio OAuth.
type Services struct {
	Clients   ClientRegistry
	Authorize AuthorizeService
	Token     TokenService
	Metadata  Metadata
}
