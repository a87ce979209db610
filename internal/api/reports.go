package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

type RequestQuery struct {
	Status   string
	Priority string
	Search   string
	Take     int
	Skip     int
}

func (c *Client) ListRequests(ctx context.Context, token string, q RequestQuery) ([]any, error) {
	query := url.Values{}
	query.Set("status", q.Status)
	query.Set("priority", q.Priority)
	query.Set("search", q.Search)
	if q.Take > 0 {
		query.Set("take", strconv.Itoa(q.Take))
	}
	if q.Skip > 0 {
		query.Set("skip", strconv.Itoa(q.Skip))
	}
	return c.list(ctx, token, "/requests", query)
}

func (c *Client) ListAuditLogs(ctx context.Context, token string, take, skip int) ([]any, error) {
	query := url.Values{}
	if take > 0 {
		query.Set("take", strconv.Itoa(take))
	}
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	return c.list(ctx, token, "/audit", query)
}

// AuditSummary returns the summary object for the last hours.
func (c *Client) AuditSummary(ctx context.Context, token string, hours int) (map[string]any, error) {
	query := url.Values{}
	if hours > 0 {
		query.Set("hours", strconv.Itoa(hours))
	}
	return c.object(ctx, token, "/audit/summary", query)
}

func (c *Client) RequestsCount(ctx context.Context, token string) (map[string]any, error) {
	return c.object(ctx, token, "/reports/requests/count", nil)
}

func (c *Client) MonthlyRequests(ctx context.Context, token string, year, month int) ([]any, error) {
	return c.list(ctx, token, fmt.Sprintf("/reports/requests/monthly/%d/%d", year, month), nil)
}

func (c *Client) AnnualRequests(ctx context.Context, token string, year int) ([]any, error) {
	return c.list(ctx, token, fmt.Sprintf("/reports/requests/annual/%d", year), nil)
}

func (c *Client) ActiveUsers(ctx context.Context, token string) (map[string]any, error) {
	return c.object(ctx, token, "/reports/users/active", nil)
}

func (c *Client) UsersByRole(ctx context.Context, token string) ([]any, error) {
	return c.list(ctx, token, "/reports/users/by-role", nil)
}

// object reads a single JSON object. Scalar answers (a bare count) are
// wrapped under "value"; anything else degrades to an empty object.
func (c *Client) object(ctx context.Context, token, path string, query url.Values) (map[string]any, error) {
	payload, err := c.Get(ctx, path, WithToken(token), WithQuery(query))
	if err != nil {
		return nil, err
	}
	if obj, ok := AsObject(payload); ok {
		if data, ok := AsObject(obj["data"]); ok {
			return data, nil
		}
		return obj, nil
	}
	if _, ok := Stringify(payload); ok {
		return map[string]any{"value": payload}, nil
	}
	return map[string]any{}, nil
}
