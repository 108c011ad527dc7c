package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/browningluke/FruitTycoon/internal/game"
)

// Client is a thin HTTP wrapper over the API for the terminal game client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Join(ctx context.Context, id, fruit string) (*game.Player, error) {
	var out game.Player
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players", map[string]any{
		"id":    id,
		"fruit": fruit,
	}, &out)
	return &out, err
}

func (c *Client) Profile(ctx context.Context, id string) (game.ProfileView, error) {
	var out game.ProfileView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/players/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) Harvest(ctx context.Context, id string) (game.HarvestResult, error) {
	var out game.HarvestResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players/"+url.PathEscape(id)+"/harvest", nil, &out)
	return out, err
}

func (c *Client) Sell(ctx context.Context, id, kind string, quantity int64) (game.SaleResult, error) {
	var out game.SaleResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players/"+url.PathEscape(id)+"/sell", map[string]any{
		"kind":     kind,
		"quantity": quantity,
	}, &out)
	return out, err
}

func (c *Client) Produce(ctx context.Context, id, recipe string, fruits []string, quantity int64) (game.ProductionTicket, error) {
	var out game.ProductionTicket
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players/"+url.PathEscape(id)+"/produce", map[string]any{
		"recipe":   recipe,
		"fruits":   fruits,
		"quantity": quantity,
	}, &out)
	return out, err
}

func (c *Client) Upgrade(ctx context.Context, id, stat string) (game.UpgradeResult, error) {
	var out game.UpgradeResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players/"+url.PathEscape(id)+"/upgrade", map[string]any{
		"stat": stat,
	}, &out)
	return out, err
}

func (c *Client) ProposeTrade(ctx context.Context, id, recipient string, request, offer game.Stake) (game.TradeSummary, error) {
	var out game.TradeSummary
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players/"+url.PathEscape(id)+"/trades", map[string]any{
		"recipient": recipient,
		"request":   request,
		"offer":     offer,
	}, &out)
	return out, err
}

func (c *Client) AcceptTrade(ctx context.Context, id string, slot int) (game.SettlementResult, error) {
	var out game.SettlementResult
	path := fmt.Sprintf("/v1/players/%s/trades/%d/accept", url.PathEscape(id), slot)
	err := c.jsonRequest(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

func (c *Client) DeclineTrade(ctx context.Context, id string, slot int) (game.RefundResult, error) {
	var out game.RefundResult
	path := fmt.Sprintf("/v1/players/%s/trades/%d/decline", url.PathEscape(id), slot)
	err := c.jsonRequest(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, topN int) ([]game.LeaderboardRow, error) {
	var out struct {
		Rows []game.LeaderboardRow `json:"rows"`
	}
	path := fmt.Sprintf("/v1/leaderboard?top=%d", topN)
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Rows, err
}

func (c *Client) Recipes(ctx context.Context) ([]game.Recipe, error) {
	var out struct {
		Recipes []game.Recipe `json:"recipes"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/recipes", nil, &out)
	return out.Recipes, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if jerr := json.Unmarshal(raw, &apiErr); jerr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("api returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
