package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/leocder07/tavily-stock-research-sub002/internal/model"
)

// StartAnalysis asks the backend to begin an analysis run and returns
// the created job, initially pending.
func (c *Client) StartAnalysis(ctx context.Context, req AnalysisRequest) (*model.AnalysisJob, error) {
	var resp jobResponse
	if err := c.post(ctx, "start_analysis", "/analysis", req, &resp); err != nil {
		return nil, fmt.Errorf("start analysis %s: %w", req.Symbol, err)
	}
	return &resp.Job, nil
}

// GetAnalysisStatus fetches the current state of one job.
func (c *Client) GetAnalysisStatus(ctx context.Context, id string) (*model.AnalysisJob, error) {
	var resp jobResponse
	if err := c.get(ctx, "get_analysis", "/analysis/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return &resp.Job, nil
}

// GetAnalysisResult fetches the result of a completed job.
func (c *Client) GetAnalysisResult(ctx context.Context, id string) (*model.AnalysisResult, error) {
	var resp resultResponse
	if err := c.get(ctx, "get_result", "/analysis/"+url.PathEscape(id)+"/result", nil, &resp); err != nil {
		return nil, fmt.Errorf("get analysis result %s: %w", id, err)
	}
	return &resp.Result, nil
}

// ListSignals fetches recent model-generated signals.
func (c *Client) ListSignals(ctx context.Context, limit int) ([]model.AISignal, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp signalsResponse
	if err := c.get(ctx, "list_signals", "/signals", query, &resp); err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return resp.Signals, nil
}
