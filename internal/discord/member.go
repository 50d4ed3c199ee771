package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AddResult distingue los dos éxitos del membership upsert.
type AddResult int

const (
	// MemberCreated: 201, el usuario entró al guild (roles aplicados al join).
	MemberCreated AddResult = iota
	// MemberAlreadyPresent: 204, el usuario ya era miembro; el upsert no
	// tocó roles, así que el caller decide si asigna el rol aparte.
	MemberAlreadyPresent
)

type addMemberBody struct {
	AccessToken string   `json:"access_token"`
	Roles       []string `json:"roles,omitempty"`
}

// AddGuildMember ejecuta el "upsert membership": PUT al endpoint de members
// con el access token del usuario y, opcionalmente, los roles a adjuntar al
// join. Es idempotente del lado del provider; esa garantía es la que hace
// seguro re-correr una reconciliación.
func (c *Client) AddGuildMember(ctx context.Context, guildID, userID, accessToken string, roleIDs []string) (AddResult, error) {
	if c.BotToken == "" {
		return 0, fmt.Errorf("discord: bot token not configured")
	}

	payload, err := json.Marshal(addMemberBody{AccessToken: accessToken, Roles: roleIDs})
	if err != nil {
		return 0, err
	}

	u := c.url("/guilds/" + guildID + "/members/" + userID)
	req, err := http.NewRequestWithContext(ctx, "PUT", u, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bot "+c.BotToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return MemberCreated, nil
	case http.StatusNoContent, http.StatusOK:
		return MemberAlreadyPresent, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}

// AddMemberRole asigna un rol con credenciales de bot. Es el fallback cuando
// el membership upsert no pudo adjuntar el rol (miembro preexistente o 409).
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	if c.BotToken == "" {
		return fmt.Errorf("discord: bot token not configured")
	}

	u := c.url("/guilds/" + guildID + "/members/" + userID + "/roles/" + roleID)
	req, err := http.NewRequestWithContext(ctx, "PUT", u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.BotToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
