// Package models defines data structures and domain types.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ReportKind selects which report a run produces.
type ReportKind string

// Report kinds.
const (
	ReportDaily   ReportKind = "daily"
	ReportByModel ReportKind = "by-model"
	ReportBoth    ReportKind = "both"
	ReportMonthly ReportKind = "monthly"
)

// ReportKinds lists every kind in display order.
var ReportKinds = []ReportKind{ReportDaily, ReportByModel, ReportMonthly, ReportBoth}

// ParseReportKind parses a report kind name.
func ParseReportKind(s string) (ReportKind, error) {
	switch k := ReportKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ReportDaily, ReportByModel, ReportBoth, ReportMonthly:
		return k, nil
	case "model", "by_model":
		return ReportByModel, nil
	}
	return "", fmt.Errorf("unknown report kind: %q", s)
}

// Description returns a human readable label.
func (k ReportKind) Description() string {
	switch k {
	case ReportDaily:
		return "Daily flex credit totals"
	case ReportByModel:
		return "Breakdown by language model"
	case ReportMonthly:
		return "Monthly summary (month range)"
	case ReportBoth:
		return "Daily totals + model breakdown"
	default:
		return string(k)
	}
}

// Run is a persisted record of one report run.
type Run struct {
	CreatedAt  time.Time
	ID         string
	Kind       ReportKind
	StartDate  string
	EndDate    string
	Workers    int
	Users      int
	Active     int
	Failed     int
	DataPoints int
	TotalFlex  Credits
}
