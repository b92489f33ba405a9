package cli

import (
	"github.com/spf13/cobra"

	"github.com/j-veylop/team-flex-credits/internal/models"
	"github.com/j-veylop/team-flex-credits/internal/period"
	"github.com/j-veylop/team-flex-credits/internal/services"
)

type reportCommand struct {
	kind  models.ReportKind
	short string
	long  string
}

var (
	reportDaily = reportCommand{
		kind:  models.ReportDaily,
		short: "Daily flex credit totals for the team",
		long: "Fetch every user's usage for the period and write one row per day with " +
			"total flex credits, prompt credits and data points.",
	}
	reportByModel = reportCommand{
		kind:  models.ReportByModel,
		short: "Flex credits broken down by language model",
		long: "Fetch every user's usage for the period and write one row per day and model, " +
			"with per-model totals and shares in the console summary.",
	}
	reportBoth = reportCommand{
		kind:  models.ReportBoth,
		short: "Daily totals and model breakdown from one fetch",
		long:  "Fetch usage once and write both the daily and the by-model reports.",
	}
)

// reportFlags are shared by every report command.
type reportFlags struct {
	year       int
	month      int
	startMonth int
	endMonth   int
	startDate  string
	endDate    string
	workers    int
	jsonFile   string
	notify     bool
	noChart    bool
}

func (f *reportFlags) bindCommon(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.year, "year", 0, "Year (e.g. 2025)")
	cmd.Flags().StringVar(&f.startDate, "start-date", "", "Start date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.endDate, "end-date", "", "End date YYYY-MM-DD")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel workers (default from DEFAULT_WORKERS, 20)")
	cmd.Flags().StringVar(&f.jsonFile, "json-file", "", "Email to API key mapping file (default: latest in the output directory)")
	cmd.Flags().BoolVar(&f.notify, "notify", false, "Show a desktop notification when the report is ready")
	cmd.Flags().BoolVar(&f.noChart, "no-chart", false, "Do not draw the daily chart")

	cmd.MarkFlagsRequiredTogether("start-date", "end-date")
	cmd.MarkFlagsMutuallyExclusive("year", "start-date")
	cmd.MarkFlagsMutuallyExclusive("year", "end-date")
}

func (f *reportFlags) request(a *app, kind models.ReportKind, p period.Period) services.Request {
	workers := f.workers
	if workers == 0 {
		workers = a.cfg.DefaultWorkers
	}
	return services.Request{
		Kind:        kind,
		Period:      p,
		MappingFile: f.jsonFile,
		Workers:     workers,
		Notify:      f.notify,
		Chart:       !f.noChart,
	}
}

// period resolves --start-date/--end-date, or --year/--month with the
// current year and month filling whatever is missing.
func (f *reportFlags) period(a *app) (period.Period, error) {
	if f.startDate != "" {
		return period.Between(f.startDate, f.endDate)
	}

	now := a.clock.Now()
	year, month := now.Year(), int(now.Month())
	if f.year != 0 {
		year = f.year
	}
	if f.month != 0 {
		month = f.month
	}
	return period.Month(year, month)
}

// monthlyPeriod resolves --start-date/--end-date or --start-month/--end-month.
func (f *reportFlags) monthlyPeriod(a *app) (period.Period, error) {
	if f.startDate != "" {
		return period.Between(f.startDate, f.endDate)
	}
	year := f.year
	if year == 0 {
		year = a.clock.Now().Year()
	}
	return period.Months(year, f.startMonth, f.endMonth)
}

func newReportCmd(a *app, rc reportCommand) *cobra.Command {
	f := &reportFlags{}

	cmd := &cobra.Command{
		Use:   string(rc.kind),
		Short: rc.short,
		Long:  rc.long + "\n\nWithout dates the current month is used.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.period(a)
			if err != nil {
				return err
			}
			return a.runReport(cmd, f.request(a, rc.kind, p))
		},
	}

	f.bindCommon(cmd)
	cmd.Flags().IntVar(&f.month, "month", 0, "Month (1-12)")
	cmd.MarkFlagsMutuallyExclusive("month", "start-date")
	cmd.MarkFlagsMutuallyExclusive("month", "end-date")

	return cmd
}

func newMonthlyCmd(a *app) *cobra.Command {
	f := &reportFlags{}

	cmd := &cobra.Command{
		Use:   string(models.ReportMonthly),
		Short: "Monthly summary over a range of months",
		Long: "Fetch usage for a month range (or a date range) and write one row per month " +
			"with flex credits, prompt credits and data points.",
		Example: "  tfc monthly --year 2025 --start-month 6 --end-month 9\n" +
			"  tfc monthly --start-date 2025-06-15 --end-date 2025-09-15",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.monthlyPeriod(a)
			if err != nil {
				return err
			}
			return a.runReport(cmd, f.request(a, models.ReportMonthly, p))
		},
	}

	f.bindCommon(cmd)
	cmd.Flags().IntVar(&f.startMonth, "start-month", 0, "Start month (1-12)")
	cmd.Flags().IntVar(&f.endMonth, "end-month", 0, "End month (1-12)")
	cmd.MarkFlagsRequiredTogether("start-month", "end-month")
	cmd.MarkFlagsMutuallyExclusive("start-month", "start-date")
	cmd.MarkFlagsOneRequired("start-month", "start-date")

	return cmd
}

func (a *app) runReport(cmd *cobra.Command, req services.Request) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	mgr, err := a.manager(cmd)
	if err != nil {
		return err
	}
	defer closeManager(mgr)

	_, err = mgr.Run(cmd.Context(), req)
	return err
}
