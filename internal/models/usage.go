// Package models defines data structures and domain types.
package models

// UnknownModel is used when a usage item carries no model name.
const UnknownModel = "unknown"

// User is a team member as listed in the mapping file.
type User struct {
	Email  string
	APIKey string
}

// UsageEvent is one usage item returned by the analytics API for a user.
type UsageEvent struct {
	APIKey        string
	Date          string // YYYY-MM-DD
	Model         string
	FlexCredits   Credits
	PromptCredits Credits
}

// DailyTotal holds the sums for one calendar date.
type DailyTotal struct {
	Date       string
	Flex       Credits
	Prompt     Credits
	DataPoints int
}

// MonthlyTotal holds the sums for one calendar month (YYYY-MM).
type MonthlyTotal struct {
	Month      string
	Flex       Credits
	Prompt     Credits
	DataPoints int
}

// Total returns flex plus prompt credits.
func (m MonthlyTotal) Total() Credits {
	return m.Flex + m.Prompt
}

// ModelTotal holds the flex credits consumed by one model.
type ModelTotal struct {
	Model string
	Flex  Credits
}
