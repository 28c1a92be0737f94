package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ProviderConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"` // si vacío => <jwt.issuer>/callback/<provider>
	Scopes       []string `yaml:"scopes"`
	// Issuer sólo aplica a providers que emiten id_token (line).
	Issuer string `yaml:"issuer"`
	// AuthURL/TokenURL/ProfileURL permiten apuntar a mocks en dev/test.
	AuthURL    string `yaml:"auth_url"`
	TokenURL   string `yaml:"token_url"`
	ProfileURL string `yaml:"profile_url"`
	JWKSURL    string `yaml:"jwks_url"`
	// Sólo dev: decodifica el id_token sin verificar firma.
	InsecureSkipIDTokenVerify bool `yaml:"insecure_skip_id_token_verify"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// Proxies (CIDR o IP) cuyos X-Forwarded-For se creen; vacío => ninguno.
		TrustedProxies []string `yaml:"trusted_proxies"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
		// Destino post-login cuando no hay request_id pendiente.
		PostLoginURL string `yaml:"post_login_url"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres | redis
		Driver        string `yaml:"driver"`
		DSN           string `yaml:"dsn"`
		SweepInterval string `yaml:"sweep_interval"` // vacío => sin sweeper
		Postgres      struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// HS256 | EdDSA
		Alg     string `yaml:"alg"`
		Secret  string `yaml:"secret"`
		KeyFile string `yaml:"key_file"` // PEM PKCS#8 Ed25519; vacío => clave efímera (dev)
		// Resource por defecto (RFC 9728). Vacío => issuer.
		Resource   string   `yaml:"resource"`
		Audiences  []string `yaml:"audiences"` // audiences aceptadas al verificar; vacío => no se valida aud
		AccessTTL  string   `yaml:"access_ttl"`
		RefreshTTL string   `yaml:"refresh_ttl"`
		CodeTTL    string   `yaml:"code_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		Session struct {
			CookieName string `yaml:"cookie_name"`
			Secret     string `yaml:"secret"`
			Domain     string `yaml:"domain"`
			SameSite   string `yaml:"samesite"`
			Secure     bool   `yaml:"secure"`
			TTL        string `yaml:"ttl"`
		} `yaml:"session"`
		ServiceTokenTTL string `yaml:"service_token_ttl"`
	} `yaml:"auth"`

	Identity struct {
		DefaultProvider string `yaml:"default_provider"`
		HTTPTimeout     string `yaml:"http_timeout"`
		Providers       struct {
			Google ProviderConfig `yaml:"google"`
			Line   ProviderConfig `yaml:"line"`
		} `yaml:"providers"`
	} `yaml:"identity"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// memory | redis (redis reusa cache.redis)
		Backend     string `yaml:"backend"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
		Token       struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"token"`
		Register struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"register"`
		Login struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Admin struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"admin"`
}

// Load lee el YAML (si path != ""), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Si RedirectURL vacío pero tenemos issuer => autogenerar
	iss := strings.TrimRight(c.JWT.Issuer, "/")
	if p := &c.Identity.Providers.Google; p.Enabled && strings.TrimSpace(p.RedirectURL) == "" {
		p.RedirectURL = iss + "/callback/google"
	}
	if p := &c.Identity.Providers.Line; p.Enabled && strings.TrimSpace(p.RedirectURL) == "" {
		p.RedirectURL = iss + "/callback/line"
	}
	return &c, nil
}

// Default devuelve una config sólo con defaults (útil en tests y CLI).
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.PostLoginURL == "" {
		c.Server.PostLoginURL = "/"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "toolgate:store:"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "toolgate:cache:"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:8080"
	}
	if c.JWT.Alg == "" {
		c.JWT.Alg = "HS256"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "1h"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.JWT.CodeTTL == "" {
		c.JWT.CodeTTL = "10m"
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "tg_session"
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "Lax"
	}
	if c.Auth.Session.TTL == "" {
		c.Auth.Session.TTL = "168h" // 7d
	}
	if c.Auth.ServiceTokenTTL == "" {
		c.Auth.ServiceTokenTTL = "1h"
	}
	if c.Identity.DefaultProvider == "" {
		c.Identity.DefaultProvider = "google"
	}
	if c.Identity.HTTPTimeout == "" {
		c.Identity.HTTPTimeout = "10s"
	}
	if len(c.Identity.Providers.Google.Scopes) == 0 {
		c.Identity.Providers.Google.Scopes = []string{"openid", "email", "profile"}
	}
	if len(c.Identity.Providers.Line.Scopes) == 0 {
		c.Identity.Providers.Line.Scopes = []string{"openid", "profile", "email"}
	}
	if c.Identity.Providers.Line.Issuer == "" {
		c.Identity.Providers.Line.Issuer = "https://access.line.me"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Rate.Token.Limit == 0 {
		c.Rate.Token.Limit = 30
	}
	if c.Rate.Token.Window == "" {
		c.Rate.Token.Window = "1m"
	}
	if c.Rate.Register.Limit == 0 {
		c.Rate.Register.Limit = 5
	}
	if c.Rate.Register.Window == "" {
		c.Rate.Register.Window = "10m"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvCSV("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}
	if v, ok := getEnvStr("POST_LOGIN_URL"); ok {
		c.Server.PostLoginURL = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_SWEEP_INTERVAL"); ok {
		c.Storage.SweepInterval = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvStr("STORAGE_REDIS_ADDR"); ok {
		c.Storage.Redis.Addr = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ALG"); ok {
		c.JWT.Alg = v
	}
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_KEY_FILE"); ok {
		c.JWT.KeyFile = v
	}
	if v, ok := getEnvStr("JWT_RESOURCE"); ok {
		c.JWT.Resource = v
	}
	if v, ok := getEnvCSV("JWT_AUDIENCES"); ok {
		c.JWT.Audiences = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// AUTH
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Auth.Session.Secret = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_COOKIE_NAME"); ok {
		c.Auth.Session.CookieName = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_DOMAIN"); ok {
		c.Auth.Session.Domain = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_SAMESITE"); ok {
		c.Auth.Session.SameSite = v
	}
	if v, ok := getEnvBool("AUTH_SESSION_SECURE"); ok {
		c.Auth.Session.Secure = v
	}
	if v, ok := getEnvStr("AUTH_SESSION_TTL"); ok {
		c.Auth.Session.TTL = v
	}

	// IDENTITY
	if v, ok := getEnvStr("IDENTITY_DEFAULT_PROVIDER"); ok {
		c.Identity.DefaultProvider = strings.ToLower(v)
	}
	if v, ok := getEnvStr("IDENTITY_HTTP_TIMEOUT"); ok {
		c.Identity.HTTPTimeout = v
	}
	applyProviderEnv("GOOGLE", &c.Identity.Providers.Google)
	applyProviderEnv("LINE", &c.Identity.Providers.Line)

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = strings.ToLower(v)
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvInt("RATE_TOKEN_LIMIT"); ok {
		c.Rate.Token.Limit = v
	}
	if v, ok := getEnvInt("RATE_REGISTER_LIMIT"); ok {
		c.Rate.Register.Limit = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}

	// ADMIN
	if v, ok := getEnvStr("ADMIN_API_KEY"); ok {
		c.Admin.APIKey = v
	}
}

func applyProviderEnv(prefix string, p *ProviderConfig) {
	if v, ok := getEnvBool(prefix + "_ENABLED"); ok {
		p.Enabled = v
	}
	if v, ok := getEnvStr(prefix + "_CLIENT_ID"); ok {
		p.ClientID = v
	}
	if v, ok := getEnvStr(prefix + "_CLIENT_SECRET"); ok {
		p.ClientSecret = v
	}
	if v, ok := getEnvStr(prefix + "_REDIRECT_URL"); ok {
		p.RedirectURL = v
	}
	if v, ok := getEnvCSV(prefix + "_SCOPES"); ok && len(v) > 0 {
		p.Scopes = v
	}
	if v, ok := getEnvBool(prefix + "_INSECURE_SKIP_ID_TOKEN_VERIFY"); ok {
		p.InsecureSkipIDTokenVerify = v
	}
}

// Validate revisa enums, duraciones y secretos mínimos.
func (c *Config) Validate() error {
	var errs []error

	durations := map[string]string{
		"server.read_timeout":       c.Server.ReadTimeout,
		"server.write_timeout":      c.Server.WriteTimeout,
		"storage.sweep_interval":    c.Storage.SweepInterval,
		"storage.postgres.lifetime": c.Storage.Postgres.ConnMaxLifetime,
		"cache.memory.default_ttl":  c.Cache.Memory.DefaultTTL,
		"jwt.access_ttl":            c.JWT.AccessTTL,
		"jwt.refresh_ttl":           c.JWT.RefreshTTL,
		"jwt.code_ttl":              c.JWT.CodeTTL,
		"auth.session.ttl":          c.Auth.Session.TTL,
		"auth.service_token_ttl":    c.Auth.ServiceTokenTTL,
		"identity.http_timeout":     c.Identity.HTTPTimeout,
		"rate.window":               c.Rate.Window,
		"rate.token.window":         c.Rate.Token.Window,
		"rate.register.window":      c.Rate.Register.Window,
		"rate.login.window":         c.Rate.Login.Window,
	}
	for k, v := range durations {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", k, err))
		}
	}

	for _, v := range c.Server.TrustedProxies {
		v = strings.TrimSpace(v)
		_, perr := netip.ParsePrefix(v)
		_, aerr := netip.ParseAddr(v)
		if v != "" && perr != nil && aerr != nil {
			errs = append(errs, fmt.Errorf("config: server.trusted_proxies: %q no es IP ni CIDR", v))
		}
	}

	switch c.Storage.Driver {
	case "memory", "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("config: storage.driver %q no soportado", c.Storage.Driver))
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		errs = append(errs, errors.New("config: storage.dsn requerido para postgres"))
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("config: cache.kind %q no soportado", c.Cache.Kind))
	}
	switch c.Rate.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("config: rate.backend %q no soportado", c.Rate.Backend))
	}
	switch c.JWT.Alg {
	case "HS256":
		if len(c.JWT.Secret) < 32 && c.IsProd() {
			errs = append(errs, errors.New("config: jwt.secret debe tener al menos 32 bytes en prod"))
		}
	case "EdDSA":
		if strings.TrimSpace(c.JWT.KeyFile) == "" && c.IsProd() {
			errs = append(errs, errors.New("config: jwt.key_file requerido en prod"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: jwt.alg %q no soportado", c.JWT.Alg))
	}
	if c.IsProd() && len(c.Auth.Session.Secret) < 32 {
		errs = append(errs, errors.New("config: auth.session.secret debe tener al menos 32 bytes en prod"))
	}
	if c.IsProd() {
		for name, p := range map[string]ProviderConfig{"google": c.Identity.Providers.Google, "line": c.Identity.Providers.Line} {
			if p.InsecureSkipIDTokenVerify {
				errs = append(errs, fmt.Errorf("config: identity.providers.%s.insecure_skip_id_token_verify no permitido en prod", name))
			}
		}
	}

	return errors.Join(errs...)
}

// IsProd indica app_env=prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Dur parsea una duración ya validada; devuelve def si está vacía o es inválida.
func Dur(s string, def time.Duration) time.Duration {
	if strings.TrimSpace(s) == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
