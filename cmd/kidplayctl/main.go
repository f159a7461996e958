package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/kidplay/internal/config"
	"github.com/dropDatabas3/kidplay/internal/http/dto"
	"github.com/dropDatabas3/kidplay/internal/revocation"
	tokens "github.com/dropDatabas3/kidplay/internal/security/token"
	"github.com/dropDatabas3/kidplay/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cl := &client{
		BaseURL:   envOr("KIDPLAY_URL", "http://localhost:8080"),
		Token:     envOr("KIDPLAY_TOKEN", ""),
		OutFormat: envOr("KIDPLAY_OUT", "text"),
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Out:       os.Stdout,
	}

	root := &cobra.Command{
		Use:           "kidplayctl",
		Short:         "Cliente de la API de kidplay (cuentas, perfiles, reproducción)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cl.Out = cmd.OutOrStdout()
		},
	}
	root.PersistentFlags().StringVar(&cl.BaseURL, "url", cl.BaseURL, "URL base del servicio (env KIDPLAY_URL)")
	root.PersistentFlags().StringVar(&cl.Token, "token", cl.Token, "Access token para rutas autenticadas (env KIDPLAY_TOKEN)")
	root.PersistentFlags().StringVar(&cl.OutFormat, "out", cl.OutFormat, "Formato de salida: json|text")

	root.AddCommand(
		credentialsCmd("register", "Crear cuenta de padre", "/v1/auth/register", cl),
		credentialsCmd("login", "Iniciar sesión", "/v1/auth/login", cl),
		refreshCmd(cl),
		logoutCmd(cl),
		profileCmd(cl),
		playCmd(cl),
		pruneCmd(),
		keygenCmd(),
	)
	return root
}

func credentialsCmd(use, short, path string, cl *client) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("--email y --password son requeridos")
			}
			var out dto.TokenResponse
			if err := cl.call(cmd.Context(), http.MethodPost, path, dto.CredentialsRequest{Email: email, Password: password}, &out, false); err != nil {
				return err
			}
			cl.print(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email")
	cmd.Flags().StringVar(&password, "password", envOr("KIDPLAY_PASSWORD", ""), "Password (env KIDPLAY_PASSWORD)")
	return cmd
}

func refreshCmd(cl *client) *cobra.Command {
	var refresh string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Obtener un access token nuevo con el refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if refresh == "" {
				return fmt.Errorf("--refresh-token es requerido")
			}
			var out dto.TokenResponse
			if err := cl.call(cmd.Context(), http.MethodPost, "/v1/auth/refresh", dto.RefreshRequest{RefreshToken: refresh}, &out, false); err != nil {
				return err
			}
			cl.print(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&refresh, "refresh-token", envOr("KIDPLAY_REFRESH_TOKEN", ""), "Refresh token (env KIDPLAY_REFRESH_TOKEN)")
	return cmd
}

func logoutCmd(cl *client) *cobra.Command {
	var refresh string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revocar el access token (--token) y opcionalmente el refresh",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out dto.OKResponse
			if err := cl.call(cmd.Context(), http.MethodPost, "/v1/auth/logout", dto.LogoutRequest{RefreshToken: refresh}, &out, true); err != nil {
				return err
			}
			cl.print(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&refresh, "refresh-token", envOr("KIDPLAY_REFRESH_TOKEN", ""), "Refresh token a revocar")
	return cmd
}

func profileCmd(cl *client) *cobra.Command {
	group := &cobra.Command{Use: "profile", Short: "Perfiles de niños (requiere --token)"}

	var name string
	var minutes int
	create := &cobra.Command{
		Use:   "create",
		Short: "Crear perfil",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out dto.ProfileResponse
			req := dto.CreateProfileRequest{Name: name, DailyLimitMinutes: minutes}
			if err := cl.call(cmd.Context(), http.MethodPost, "/v1/profiles", req, &out, true); err != nil {
				return err
			}
			cl.print(out)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "Nombre")
	create.Flags().IntVar(&minutes, "daily-limit", 0, "Minutos diarios (0 = default del servicio)")

	var chip string
	bind := &cobra.Command{
		Use:   "bind-chip <profile-id>",
		Short: "Vincular un chip al perfil",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := chip
			if token == "" {
				var err error
				if token, err = tokens.GenerateOpaqueToken(32); err != nil {
					return err
				}
			}
			if err := cl.call(cmd.Context(), http.MethodPost, "/v1/profiles/"+args[0]+"/chips", dto.BindChipRequest{ChipToken: token}, nil, true); err != nil {
				return err
			}
			// el servicio guarda solo el hash: este es el único momento en que se ve
			cl.print(map[string]string{"profile_id": args[0], "chip_token": token})
			return nil
		},
	}
	bind.Flags().StringVar(&chip, "chip", "", "Token del chip (vacío = generar uno)")

	usage := &cobra.Command{
		Use:   "usage <profile-id>",
		Short: "Consumo de hoy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out dto.UsageResponse
			if err := cl.call(cmd.Context(), http.MethodGet, "/v1/profiles/"+args[0]+"/usage", nil, &out, true); err != nil {
				return err
			}
			cl.print(out)
			return nil
		},
	}

	group.AddCommand(create, bind, usage)
	return group
}

func playCmd(cl *client) *cobra.Command {
	var chip string
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Escanear un chip y mantener la sesión con heartbeats hasta Ctrl-C o cierre",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if chip == "" {
				return fmt.Errorf("--chip es requerido")
			}
			reason, err := newPlayer(cl).Run(cmd.Context(), chip, interval)
			if err != nil {
				return err
			}
			cl.print(map[string]string{"reason": reason})
			return nil
		},
	}
	cmd.Flags().StringVar(&chip, "chip", "", "Token del chip")
	cmd.Flags().DurationVar(&interval, "interval", 60*time.Second, "Intervalo de heartbeat (se acota a 30s..120s)")
	return cmd
}

// pruneCmd corre una pasada del pruner directo contra storage.
func pruneCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Borrar revocaciones vencidas (conecta a storage, no al servicio)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			conn, err := store.Open(cmd.Context(), store.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN, MaxConns: 2})
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := revocation.NewStore(conn.Revocations(), nil).Prune(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned=%d\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Ruta a config.yaml (vacío = env/defaults)")
	return cmd
}

// keygenCmd genera un seed Ed25519 para jwt.signing_key.
func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generar un seed Ed25519 para JWT_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed := make([]byte, ed25519.SeedSize)
			if _, err := rand.Read(seed); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.RawURLEncoding.EncodeToString(seed))
			return nil
		},
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
