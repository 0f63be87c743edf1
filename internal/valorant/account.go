package valorant

import (
	"context"
	"fmt"
	"net/url"
)

// Account represents a Valorant account from the v1 account endpoint
type Account struct {
	PUUID   string `json:"puuid"`
	Region  string `json:"region"`
	Name    string `json:"name"`
	Tag     string `json:"tag"`
	Level   int    `json:"account_level"`
	Card    string `json:"card"`
	Updated string `json:"last_update"`
}

type accountResponse struct {
	Status int     `json:"status"`
	Data   Account `json:"data"`
}

// GetAccount retrieves account information by Riot name and tag
func (c *Client) GetAccount(ctx context.Context, name, tag string) (*Account, error) {
	path := fmt.Sprintf("/valorant/v1/account/%s/%s",
		url.PathEscape(name), url.PathEscape(tag))

	var resp accountResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to get account %s#%s: %w", name, tag, err)
	}

	return &resp.Data, nil
}
