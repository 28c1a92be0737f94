package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/toolgate/internal/config"
	"github.com/dropDatabas3/toolgate/internal/http/server"
	jwtx "github.com/dropDatabas3/toolgate/internal/jwt"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
	"github.com/dropDatabas3/toolgate/internal/store"
	"github.com/dropDatabas3/toolgate/internal/store/pg"
	migrations "github.com/dropDatabas3/toolgate/migrations/postgres"
)

func main() {
	root := &cobra.Command{
		Use:           "toolgate",
		Short:         "Servidor OAuth 2.1 para tools MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadDotEnv(cmd)
		},
	}
	root.PersistentFlags().String("config", "", "Ruta a config.yaml (env TOOLGATE_CONFIG); vacío => sólo env")
	root.PersistentFlags().String("env-file", ".env", "Ruta a .env (opcional)")

	// El path se resuelve recién acá, con el .env ya cargado.
	load := func() (*config.Config, error) {
		cfg, err := config.Load(flagOrEnv(root, "config", "TOOLGATE_CONFIG"))
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
		return cfg, nil
	}

	root.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		keysCmd(),
		clientCmd(load),
		serviceTokenCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

type loadFunc func() (*config.Config, error)

func serveCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP (y el sweeper si está configurado)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.ToContext(ctx, logger.L())

			app, err := server.Build(ctx, cfg, server.Options{})
			if err != nil {
				return fmt.Errorf("wiring: %w", err)
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.L().Warn("cleanup failed", logger.Err(err))
				}
			}()

			srv := server.NewHTTPServer(cfg, app.Handler)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return server.Run(gctx, srv) })
			g.Go(func() error {
				return store.RunSweeper(gctx, app.Store, config.Dur(cfg.Storage.SweepInterval, 0))
			})
			return g.Wait()
		},
	}
}

func migrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de Postgres pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return errors.New("migrate requiere storage.driver=postgres")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			st, err := pg.New(ctx, cfg.Storage.DSN, pg.Options{MaxOpenConns: 2})
			if err != nil {
				return err
			}
			defer st.Close()

			applied, err := st.Migrate(ctx, migrations.FS, migrations.Dir)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("nada para aplicar")
				return nil
			}
			fmt.Printf("aplicadas: %v\n", applied)
			return nil
		},
	}
}

func keysCmd() *cobra.Command {
	keys := &cobra.Command{Use: "keys", Short: "Claves de firma"}

	var out string
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave Ed25519 PKCS#8 (para jwt.alg=EdDSA)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := jwtx.NewDevEd25519("")
			if err != nil {
				return err
			}
			pem, err := ks.EncodeEd25519PEM()
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = os.Stdout.Write(pem)
				return err
			}
			if err := os.WriteFile(out, pem, 0o600); err != nil {
				return err
			}
			fmt.Printf("clave escrita en %s (kid=%s)\n", out, ks.KID)
			return nil
		},
	}
	gen.Flags().StringVar(&out, "out", "", "Archivo destino (vacío o - => stdout)")
	keys.AddCommand(gen)
	return keys
}

// loadDotEnv carga --env-file si existe. No pisa variables ya exportadas.
func loadDotEnv(cmd *cobra.Command) {
	if f, _ := cmd.Flags().GetString("env-file"); f != "" {
		_ = godotenv.Load(f)
	}
}

// flagOrEnv: un flag pasado explícitamente gana; si no, la variable de
// entorno; si no, el default del flag.
func flagOrEnv(cmd *cobra.Command, flag, env string) string {
	f := cmd.Flag(flag)
	if f != nil && f.Changed {
		return f.Value.String()
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	if f != nil {
		return f.Value.String()
	}
	return ""
}
