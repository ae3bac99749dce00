package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// ListPortfolios fetches all portfolios.
func (c *Client) ListPortfolios(ctx context.Context) ([]model.Portfolio, error) {
	var resp portfoliosResponse
	if err := c.get(ctx, "list_portfolios", "/portfolios", nil, &resp); err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	return resp.Portfolios, nil
}

// CreatePortfolio creates a portfolio and returns the stored copy.
func (c *Client) CreatePortfolio(ctx context.Context, req PortfolioRequest) (*model.Portfolio, error) {
	var resp portfolioResponse
	if err := c.post(ctx, "create_portfolio", "/portfolios", req, &resp); err != nil {
		return nil, fmt.Errorf("create portfolio: %w", err)
	}
	return &resp.Portfolio, nil
}

// UpdatePortfolio replaces a portfolio and returns the stored copy.
func (c *Client) UpdatePortfolio(ctx context.Context, id string, req PortfolioRequest) (*model.Portfolio, error) {
	var resp portfolioResponse
	if err := c.put(ctx, "update_portfolio", "/portfolios/"+url.PathEscape(id), req, &resp); err != nil {
		return nil, fmt.Errorf("update portfolio %s: %w", id, err)
	}
	return &resp.Portfolio, nil
}

// DeletePortfolio removes a portfolio.
func (c *Client) DeletePortfolio(ctx context.Context, id string) error {
	if err := c.del(ctx, "delete_portfolio", "/portfolios/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("delete portfolio %s: %w", id, err)
	}
	return nil
}
