package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// GetQuote fetches the latest quote for one symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	var resp quoteResponse
	if err := c.get(ctx, "get_quote", "/quotes/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return nil, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	return &resp.Quote, nil
}

// GetQuotes fetches quotes for a batch of symbols.
func (c *Client) GetQuotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	query := url.Values{}
	if len(symbols) > 0 {
		query.Set("symbols", strings.Join(symbols, ","))
	}

	var resp quotesResponse
	if err := c.get(ctx, "get_quotes", "/quotes", query, &resp); err != nil {
		return nil, fmt.Errorf("get quotes: %w", err)
	}
	return resp.Quotes, nil
}

// GetMarketOverview fetches index levels and sector performance.
func (c *Client) GetMarketOverview(ctx context.Context) (*OverviewResponse, error) {
	var resp OverviewResponse
	if err := c.get(ctx, "get_overview", "/market/overview", nil, &resp); err != nil {
		return nil, fmt.Errorf("get market overview: %w", err)
	}
	return &resp, nil
}

// GetMarketNews fetches recent market news headlines.
func (c *Client) GetMarketNews(ctx context.Context, limit int) ([]model.NewsItem, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp newsResponse
	if err := c.get(ctx, "get_news", "/market/news", query, &resp); err != nil {
		return nil, fmt.Errorf("get market news: %w", err)
	}
	return resp.News, nil
}
