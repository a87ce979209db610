package api

import (
	"context"
	"net/url"
	"strconv"
)

type NotificationQuery struct {
	IncludeRead bool
	Take        int
	Skip        int
}

// ListNotifications returns the raw notification records, whatever
// envelope the backend wrapped them in.
func (c *Client) ListNotifications(ctx context.Context, token string, q NotificationQuery) ([]any, error) {
	query := url.Values{}
	query.Set("includeRead", strconv.FormatBool(q.IncludeRead))
	if q.Take > 0 {
		query.Set("take", strconv.Itoa(q.Take))
	}
	if q.Skip > 0 {
		query.Set("skip", strconv.Itoa(q.Skip))
	}
	payload, err := c.Get(ctx, "/notifications", WithToken(token), WithQuery(query))
	if err != nil {
		return nil, err
	}
	return ExtractArray(payload), nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, token, id string) error {
	_, err := c.Post(ctx, "/notifications/"+url.PathEscape(id)+"/read", WithToken(token))
	return err
}
