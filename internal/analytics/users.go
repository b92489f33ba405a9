package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type userTableRequest struct {
	ServiceKey     string `json:"service_key"`
	StartTimestamp string `json:"start_timestamp"`
	EndTimestamp   string `json:"end_timestamp"`
}

// FetchUserTable returns the email to API key pairs of every user active
// between start and end (whole days, UTC).
func (c *Client) FetchUserTable(ctx context.Context, start, end time.Time) (map[string]string, error) {
	req := userTableRequest{
		ServiceKey:     c.serviceKey,
		StartTimestamp: start.UTC().Format("2006-01-02") + "T00:00:00Z",
		EndTimestamp:   end.UTC().Format("2006-01-02") + "T23:59:59Z",
	}

	body, err := c.post(ctx, userTablePath, req)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}

	pairs := make(map[string]string)
	gjson.GetBytes(body, "userTableStats").ForEach(func(_, user gjson.Result) bool {
		email := strings.TrimSpace(user.Get("email").String())
		apiKey := strings.TrimSpace(user.Get("apiKey").String())
		if email != "" && apiKey != "" {
			pairs[email] = apiKey
		}
		return true
	})

	return pairs, nil
}
