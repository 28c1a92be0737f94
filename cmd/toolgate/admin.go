package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/toolgate/internal/config"
	dto "github.com/dropDatabas3/toolgate/internal/http/dto/oauth"
	oauthsvc "github.com/dropDatabas3/toolgate/internal/http/services/oauth"
	"github.com/dropDatabas3/toolgate/internal/store"
)

// adminClient habla con /internal/* usando la admin key.
type adminClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func (c *adminClient) do(method, path string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, strings.TrimRight(c.BaseURL, "/")+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func printJSON(body []byte) {
	var v any
	if json.Unmarshal(body, &v) == nil {
		p, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(p))
		return
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	}
}

func serviceTokenCmd() *cobra.Command {
	cl := &adminClient{HTTP: &http.Client{Timeout: 30 * time.Second}}

	cmd := &cobra.Command{
		Use:   "service-token",
		Short: "Emite o revoca service tokens (vía /internal/service-tokens)",
		// reemplaza el hook del root (cobra corre sólo el más cercano)
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadDotEnv(cmd)
			cl.BaseURL = flagOrEnv(cmd, "url", "TOOLGATE_URL")
			cl.APIKey = flagOrEnv(cmd, "admin-api-key", "ADMIN_API_KEY")
			if cl.APIKey == "" {
				return errors.New("falta API key (flag --admin-api-key o env ADMIN_API_KEY)")
			}
			return nil
		},
	}
	cmd.PersistentFlags().String("url", "http://localhost:8080", "URL base del servidor (env TOOLGATE_URL)")
	cmd.PersistentFlags().String("admin-api-key", "", "Admin API key (env ADMIN_API_KEY)")

	var (
		userID string
		scopes []string
		preset string
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Emite un service token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user es requerido")
			}
			status, body, err := cl.do(http.MethodPost, "/internal/service-tokens", map[string]any{
				"user_id": userID,
				"scopes":  scopes,
				"preset":  preset,
			})
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("issue falló: status=%d body=%s", status, string(body))
			}
			printJSON(body)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user_id dueño del token")
	issue.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes (repetible); gana sobre --preset")
	issue.Flags().StringVar(&preset, "preset", "user", "Preset: user|admin")

	var token string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoca un service token (idempotente)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token es requerido")
			}
			status, body, err := cl.do(http.MethodDelete, "/internal/service-tokens", map[string]string{"token": token})
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("revoke falló: status=%d body=%s", status, string(body))
			}
			fmt.Println("ok")
			return nil
		},
	}
	revoke.Flags().StringVar(&token, "token", "", "Token en claro")

	cmd.AddCommand(issue, revoke)
	return cmd
}

// clientCmd registra clientes directo contra el store configurado, sin pasar
// por el rate limit de /register.
func clientCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "client", Short: "Clientes OAuth"}

	var req dto.RegisterRequest
	register := &cobra.Command{
		Use:   "register",
		Short: "Registra un cliente y muestra sus credenciales",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver == "memory" {
				return errors.New("client register necesita un store persistente (postgres|redis)")
			}
			ctx := cmd.Context()
			st, err := store.Open(ctx, store.Config{
				Driver:          cfg.Storage.Driver,
				DSN:             cfg.Storage.DSN,
				MaxOpenConns:    2,
				ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime, 0),
				RedisAddr:       cfg.Storage.Redis.Addr,
				RedisDB:         cfg.Storage.Redis.DB,
				RedisPrefix:     cfg.Storage.Redis.Prefix,
			})
			if err != nil {
				return err
			}
			defer st.Close()

			reg := oauthsvc.NewClientRegistry(oauthsvc.ClientRegistryDeps{Clients: st.Clients()})
			resp, err := reg.Register(ctx, req)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			b, _ := json.Marshal(resp)
			printJSON(b)
			return nil
		},
	}
	register.Flags().StringSliceVar(&req.RedirectURIs, "redirect-uri", nil, "redirect_uri (repetible)")
	register.Flags().StringVar(&req.ClientName, "name", "", "client_name")
	register.Flags().StringVar(&req.Scope, "scope", "", "Scopes separados por espacio")
	register.Flags().StringSliceVar(&req.GrantTypes, "grant-type", nil, "grant_types (repetible)")
	register.Flags().StringVar(&req.TokenEndpointAuthMethod, "auth-method", "", "none|client_secret_basic|client_secret_post")

	cmd.AddCommand(register)
	return cmd
}
