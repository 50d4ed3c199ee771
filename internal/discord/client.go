// Package discord implements the provider client: OAuth 2.0 code exchange,
// identity lookup, and guild-membership calls. Discord uses plain OAuth 2.0
// without ID tokens, so identity requires a separate API call with the
// user's bearer token; membership calls authenticate with the bot token.
package discord

import (
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://discord.com/api/v10"

// Client is the Discord API client.
type Client struct {
	APIBase      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// BotToken autentica las llamadas de membership (no el token del usuario).
	BotToken string

	http *http.Client
}

// Config agrupa los parámetros del cliente.
type Config struct {
	APIBase      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	BotToken     string
	Timeout      time.Duration
}

// New creates a new Discord client.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"identify", "guilds.join"}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		APIBase:      base,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
		BotToken:     cfg.BotToken,
		http:         &http.Client{Timeout: timeout},
	}
}

// HasBotToken reports whether membership calls can authenticate.
func (c *Client) HasBotToken() bool {
	return c.BotToken != ""
}

func (c *Client) url(path string) string {
	return c.APIBase + path
}
