package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
)

// CSV headers.
var (
	DailyHeader   = []string{"event_date", "date_formatted", "total_flex_credits", "total_prompt_credits", "data_points"}
	ModelHeader   = []string{"event_date", "date_formatted", "model_internal", "model_name", "flex_credits"}
	MonthlyHeader = []string{"month", "month_formatted", "total_flex_credits", "total_prompt_credits", "total_credits_used", "data_points"}
)

// ErrBadHeader is returned when a CSV file does not start with the expected header.
var ErrBadHeader = errors.New("unexpected CSV header")

// DailyFilename names the daily totals file for a period generated on today.
func DailyFilename(p period.Period, today time.Time) string {
	return fmt.Sprintf("team_daily_flex_credits_%s_%s.csv", p.Label(), today.Format(period.DateLayout))
}

// ModelFilename names the per-model breakdown file.
func ModelFilename(p period.Period, today time.Time) string {
	return fmt.Sprintf("flex_credits_by_model_%s_%s.csv", p.Label(), today.Format(period.DateLayout))
}

// MonthlyFilename names the monthly summary file.
func MonthlyFilename(p period.Period, today time.Time) string {
	return fmt.Sprintf("team_monthly_credits_%s_%s.csv", p.MonthSpanLabel(), today.Format(period.DateLayout))
}

// SaveCSV creates dir/name and fills it with write. The file is removed if
// write fails.
func SaveCSV(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// WriteDailyCSV writes daily rows with their header.
func WriteDailyCSV(w io.Writer, rows []DailyRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DailyHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{r.Date, r.DateFormatted, r.Flex.String(), r.Prompt.String(), strconv.Itoa(r.DataPoints)}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteModelCSV writes per-model rows with their header.
func WriteModelCSV(w io.Writer, rows []ModelRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ModelHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{r.Date, r.DateFormatted, r.Model, r.ModelName, r.Flex.String()}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMonthlyCSV writes monthly rows with their header.
func WriteMonthlyCSV(w io.Writer, rows []MonthlyRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MonthlyHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Month, r.MonthFormatted,
			r.Flex.String(), r.Prompt.String(), r.Total.String(),
			strconv.Itoa(r.DataPoints),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadDailyCSV parses a file written by WriteDailyCSV.
func ReadDailyCSV(r io.Reader) ([]DailyRow, error) {
	records, err := readRecords(r, DailyHeader)
	if err != nil {
		return nil, err
	}

	rows := make([]DailyRow, 0, len(records))
	for i, rec := range records {
		flex, err := parseCredits(rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		prompt, err := parseCredits(rec[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		points, err := strconv.Atoi(rec[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid data points: %w", i+2, err)
		}
		rows = append(rows, DailyRow{Date: rec[0], DateFormatted: rec[1], Flex: flex, Prompt: prompt, DataPoints: points})
	}
	return rows, nil
}

// ReadModelCSV parses a file written by WriteModelCSV.
func ReadModelCSV(r io.Reader) ([]ModelRow, error) {
	records, err := readRecords(r, ModelHeader)
	if err != nil {
		return nil, err
	}

	rows := make([]ModelRow, 0, len(records))
	for i, rec := range records {
		flex, err := parseCredits(rec[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		rows = append(rows, ModelRow{Date: rec[0], DateFormatted: rec[1], Model: rec[2], ModelName: rec[3], Flex: flex})
	}
	return rows, nil
}

// ReadMonthlyCSV parses a file written by WriteMonthlyCSV.
func ReadMonthlyCSV(r io.Reader) ([]MonthlyRow, error) {
	records, err := readRecords(r, MonthlyHeader)
	if err != nil {
		return nil, err
	}

	rows := make([]MonthlyRow, 0, len(records))
	for i, rec := range records {
		var amounts [3]models.Credits
		for j := range amounts {
			amounts[j], err = parseCredits(rec[2+j])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+2, err)
			}
		}
		points, err := strconv.Atoi(rec[5])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid data points: %w", i+2, err)
		}
		rows = append(rows, MonthlyRow{
			Month:          rec[0],
			MonthFormatted: rec[1],
			Flex:           amounts[0],
			Prompt:         amounts[1],
			Total:          amounts[2],
			DataPoints:     points,
		})
	}
	return rows, nil
}

func readRecords(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 || !slices.Equal(records[0], header) {
		return nil, ErrBadHeader
	}
	return records[1:], nil
}

func parseCredits(s string) (models.Credits, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid credit amount %q: %w", s, err)
	}
	return models.CreditsFromFloat(v), nil
}
