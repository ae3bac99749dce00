package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// GetWatchlist fetches the watchlist.
func (c *Client) GetWatchlist(ctx context.Context) ([]model.WatchlistItem, error) {
	var resp watchlistResponse
	if err := c.get(ctx, "get_watchlist", "/watchlist", nil, &resp); err != nil {
		return nil, fmt.Errorf("get watchlist: %w", err)
	}
	return resp.Watchlist, nil
}

// AddWatchlistSymbol adds a symbol to the watchlist and returns the
// stored item.
func (c *Client) AddWatchlistSymbol(ctx context.Context, symbol string) (*model.WatchlistItem, error) {
	payload := map[string]string{"symbol": symbol}

	var resp watchlistItemResponse
	if err := c.post(ctx, "add_watchlist", "/watchlist", payload, &resp); err != nil {
		return nil, fmt.Errorf("add watchlist symbol %s: %w", symbol, err)
	}
	return &resp.Item, nil
}

// RemoveWatchlistSymbol removes a symbol from the watchlist.
func (c *Client) RemoveWatchlistSymbol(ctx context.Context, symbol string) error {
	if err := c.del(ctx, "remove_watchlist", "/watchlist/"+url.PathEscape(symbol), nil); err != nil {
		return fmt.Errorf("remove watchlist symbol %s: %w", symbol, err)
	}
	return nil
}
