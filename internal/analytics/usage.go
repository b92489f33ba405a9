package analytics

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
)

const cascadeDataSource = "QUERY_DATA_SOURCE_CASCADE_DATA"

type usageRequest struct {
	ServiceKey    string         `json:"service_key"`
	QueryRequests []queryRequest `json:"query_requests"`
}

type queryRequest struct {
	DataSource string        `json:"data_source"`
	Selections []selection   `json:"selections"`
	Filters    []queryFilter `json:"filters"`
}

type selection struct {
	Field string `json:"field"`
	Name  string `json:"name"`
}

type queryFilter struct {
	Name   string `json:"name"`
	Filter string `json:"filter"`
	Value  string `json:"value"`
}

var usageFields = []string{"api_key", "date", "prompts_used", "flex_credits_used", "model"}

func newUsageRequest(serviceKey, apiKey string, p period.Period) usageRequest {
	selections := make([]selection, len(usageFields))
	for i, f := range usageFields {
		selections[i] = selection{Field: f, Name: f}
	}

	return usageRequest{
		ServiceKey: serviceKey,
		QueryRequests: []queryRequest{{
			DataSource: cascadeDataSource,
			Selections: selections,
			Filters: []queryFilter{
				{Name: "date", Filter: "QUERY_FILTER_GE", Value: p.StartDate()},
				{Name: "date", Filter: "QUERY_FILTER_LE", Value: p.EndDate()},
				{Name: "api_key", Filter: "QUERY_FILTER_EQUAL", Value: apiKey},
			},
		}},
	}
}

// FetchUsage returns the usage events of one user within the period.
func (c *Client) FetchUsage(ctx context.Context, apiKey string, p period.Period) ([]models.UsageEvent, error) {
	body, err := c.post(ctx, usagePath, newUsageRequest(c.serviceKey, apiKey, p))
	if err != nil {
		return nil, err
	}
	return parseUsage(body, apiKey)
}

// parseUsage walks queryResults[].responseItems[].item. Items without a date
// are dropped.
func parseUsage(body []byte, apiKey string) ([]models.UsageEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}

	// A null queryResults is an idle user, not a bad response.
	results := gjson.GetBytes(body, "queryResults")
	if results.Exists() && results.Type != gjson.Null && !results.IsArray() {
		return nil, fmt.Errorf("%w: queryResults is not a list", ErrMalformedResponse)
	}

	var events []models.UsageEvent
	results.ForEach(func(_, result gjson.Result) bool {
		result.Get("responseItems").ForEach(func(_, responseItem gjson.Result) bool {
			item := responseItem.Get("item")
			if !item.Exists() {
				return true
			}
			if ev, ok := parseItem(item, apiKey); ok {
				events = append(events, ev)
			}
			return true
		})
		return true
	})

	return events, nil
}

func parseItem(item gjson.Result, apiKey string) (models.UsageEvent, bool) {
	date := period.NormalizeDate(item.Get("date").String())
	if date == "" || date == "<nil>" {
		return models.UsageEvent{}, false
	}

	model := strings.TrimSpace(item.Get("model").String())
	if model == "" {
		model = models.UnknownModel
	}

	if key := item.Get("api_key").String(); key != "" {
		apiKey = key
	}

	return models.UsageEvent{
		APIKey:        apiKey,
		Date:          date,
		Model:         model,
		FlexCredits:   hundredths(item.Get("flex_credits_used")),
		PromptCredits: hundredths(item.Get("prompts_used")),
	}, true
}

// hundredths reads a credit value that may be a number, a numeric string,
// an empty string or "<nil>". Anything unreadable counts as zero.
func hundredths(v gjson.Result) models.Credits {
	var raw float64
	switch v.Type {
	case gjson.Number:
		raw = v.Float()
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if s == "" || s == "<nil>" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		raw = f
	default:
		return 0
	}
	// The API reports whole hundredths; a fractional value is rounded per event.
	return models.Credits(math.Round(raw))
}
