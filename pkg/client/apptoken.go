package client

import (
	"context"
	"fmt"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/session"
)

// AddAppToken creates an admin app token. Adding tokens requires a client
// authenticated with the admin secret.
func (c *Client) AddAppToken(ctx context.Context, description string) (kaltura.AppToken, error) {
	if description == "" {
		description = "Basic app token"
	}
	call := kaltura.NewCall("appToken", "add", map[string]any{
		"appToken": map[string]any{
			"objectType":  "KalturaAppToken",
			"description": description,
			"hashType":    string(session.DefaultHashType),
			"sessionType": kaltura.SessionTypeAdmin,
		},
	})
	token, err := do[kaltura.AppToken](ctx, c, call)
	if err != nil {
		return kaltura.AppToken{}, fmt.Errorf("add app token: %w", err)
	}
	c.logger.Info().Str("app_token_id", token.ID).Msg("App token added")
	return token, nil
}

// ListAppTokens returns the partner's app tokens.
func (c *Client) ListAppTokens(ctx context.Context) ([]kaltura.AppToken, error) {
	resp, err := do[kaltura.ListResponse[kaltura.AppToken]](ctx, c, kaltura.NewCall("appToken", "list", nil))
	if err != nil {
		return nil, fmt.Errorf("list app tokens: %w", err)
	}
	return resp.Objects, nil
}

// DeleteAppToken deletes an app token.
func (c *Client) DeleteAppToken(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: app token id is required", kaltura.ErrConfiguration)
	}
	if _, err := c.executor.Do(ctx, kaltura.NewCall("appToken", "delete", map[string]any{"id": id}), true); err != nil {
		return fmt.Errorf("delete app token: %w", err)
	}
	c.logger.Info().Str("app_token_id", id).Msg("App token deleted")
	return nil
}
