// guildctl es el CLI operativo contra el Admin API del servicio:
// login, listado/export de verificados, pull de reconciliación.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/guildgate/internal/security/loginkey"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
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

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("GUILDGATE_URL", "http://localhost:8080")
		token   = envOr("GUILDGATE_TOKEN", "")
		out     = envOr("GUILDGATE_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "guildctl",
		Short: "CLI operativo para guildgate (vía /v1)",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env GUILDGATE_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Token de sesión admin (env GUILDGATE_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: 10 * time.Minute}}
	syncClient := func() {
		cl.BaseURL = baseURL
		cl.Token = token
		cl.OutFormat = out
	}

	// login: cambia la login key por un token de sesión
	var loginKey string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Obtener un token de sesión con la login key",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			if loginKey == "" {
				loginKey = os.Getenv("GUILDGATE_KEY")
			}
			if loginKey == "" {
				return fmt.Errorf("falta la login key (--key o env GUILDGATE_KEY)")
			}
			b, _ := json.Marshal(map[string]string{"login_key": loginKey})
			status, body, err := cl.do("POST", "/v1/admin/login", b)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("login falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	loginCmd.Flags().StringVar(&loginKey, "key", "", "Login key (env GUILDGATE_KEY)")

	// users
	usersCmd := &cobra.Command{Use: "users", Short: "Registro de usuarios verificados"}

	usersCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Listar verificados (sin tokens)",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, body, err := cl.do("GET", "/v1/admin/verified-users", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	})

	usersCmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Export completo, tokens incluidos (requiere owner)",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, body, err := cl.do("GET", "/v1/admin/verified-users/export", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	})

	usersCmd.AddCommand(&cobra.Command{
		Use:   "delete <externalID>",
		Short: "Borrar un verificado (requiere owner)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, body, err := cl.do("DELETE", "/v1/admin/verified-users/"+args[0], nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	})

	// check: consulta pública de verificación
	checkCmd := &cobra.Command{
		Use:   "check <externalID>",
		Short: "Consultar si un usuario está verificado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, body, err := cl.do("GET", "/v1/check-user/"+args[0], nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	// stats
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Agregados del registro",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, body, err := cl.do("GET", "/v1/admin/stats", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	// pull: corrida de reconciliación
	var pullGuild, pullRole, pullUsers string
	pullCmd := &cobra.Command{
		Use:   "pull",
		Short: "Reconciliar la membresía del guild con los verificados",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			if pullGuild == "" {
				return fmt.Errorf("falta --guild")
			}
			req := map[string]any{"target_guild_id": pullGuild}
			if pullRole != "" {
				req["role_id"] = pullRole
			}
			if pullUsers != "" {
				var ids []string
				for _, p := range strings.Split(pullUsers, ",") {
					if s := strings.TrimSpace(p); s != "" {
						ids = append(ids, s)
					}
				}
				req["user_ids"] = ids
			}
			b, _ := json.Marshal(req)
			status, body, err := cl.do("POST", "/v1/admin/pull", b)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("pull falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	pullCmd.Flags().StringVar(&pullGuild, "guild", "", "Guild ID destino")
	pullCmd.Flags().StringVar(&pullRole, "role", "", "Role ID a asignar (default: el configurado)")
	pullCmd.Flags().StringVar(&pullUsers, "users", "", "External IDs separados por coma (default: todos)")

	// logout: revoca la sesión actual
	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Revocar el token de sesión actual",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, body, err := cl.do("POST", "/v1/admin/logout", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("logout falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	// hash-key: genera el hash argon2id para configs (no toca el servicio)
	hashCmd := &cobra.Command{
		Use:   "hash-key <plaintext>",
		Short: "Generar el hash argon2id de una login key para la config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phc, err := loginkey.Hash(loginkey.Default, args[0])
			if err != nil {
				return err
			}
			fmt.Println(phc)
			return nil
		},
	}

	root.AddCommand(loginCmd, logoutCmd, usersCmd, checkCmd, statsCmd, pullCmd, hashCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
