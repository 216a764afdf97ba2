package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/nuam/internal/activity"
	"github.com/Veraticus/nuam/internal/cli"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/report"
	"github.com/Veraticus/nuam/internal/service"
	"github.com/Veraticus/nuam/internal/storage"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise qualified records, errors and activity",
	}
	cmd.AddCommand(
		reportConsolidatedCmd(),
		reportRecordsCmd(),
		reportDashboardCmd(),
		reportErrorsCmd(),
		reportAuditCmd(),
	)
	return cmd
}

// withStore opens storage, resolves the acting user and checks its roles
// before running fn.
func withStore(cmd *cobra.Command, roles []model.Role, fn func(store *storage.SQLStorage, user *model.User) error) error {
	store, _, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	user, err := currentUser(cmd.Context(), store)
	if err != nil {
		return err
	}
	if err := requireRoles(user, roles...); err != nil {
		return err
	}
	return fn(store, user)
}

func reportConsolidatedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidated",
		Short: "Totals per tax year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			roles := []model.Role{model.RoleManager, model.RoleAdministrator, model.RoleAuditor}
			return withStore(cmd, roles, func(store *storage.SQLStorage, _ *model.User) error {
				years, err := report.NewReporter(store).Consolidated(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatTitle("Consolidated by tax year"))
				fmt.Println(cli.RenderTable(yearHeader, yearRows(years)))
				return nil
			})
		},
	}
}

var yearHeader = []string{"Tax year", "Records", "Gross amount", "Qualified amount"}

func yearRows(years []service.YearSummary) [][]string {
	rows := make([][]string, 0, len(years))
	for _, y := range years {
		rows = append(rows, []string{
			strconv.Itoa(y.TaxYear),
			strconv.Itoa(y.Count),
			y.TotalGross.StringFixed(2),
			y.TotalQualified.StringFixed(2),
		})
	}
	return rows
}

func reportRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List and summarise qualified records",
		Example: `  nuam report records --user ana --tax-year 2024 --status validated
  nuam report records --user ana --issuer andina --limit 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := recordFlags(cmd)
			if err != nil {
				return err
			}
			roles := []model.Role{model.RoleBroker, model.RoleAnalyst, model.RoleAdministrator, model.RoleAuditor, model.RoleManager}
			return withStore(cmd, roles, func(store *storage.SQLStorage, _ *model.User) error {
				list, err := store.ListRecords(cmd.Context(), filter)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(list))
				for _, r := range list {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						r.Issuer.Name,
						r.BrokerLabel,
						strconv.Itoa(r.TaxYear),
						r.GrossAmount.StringFixed(2),
						r.Factor.String(),
						r.QualifiedAmount.StringFixed(2),
						string(r.Status),
					})
				}
				fmt.Println(cli.RenderTable([]string{"ID", "Issuer", "Broker", "Year", "Gross", "Factor", "Qualified", "Status"}, rows))

				s := report.Summarize(list)
				fmt.Println(cli.RenderBox("Summary", fmt.Sprintf(
					"Records: %d\nGross amount: %s\nQualified amount: %s\nAverage factor: %s",
					s.Count, s.TotalGross.StringFixed(2), s.TotalQualified.StringFixed(2), s.AverageFactor.StringFixed(report.FactorPlaces))))
				return nil
			})
		},
	}

	addRecordFlags(cmd)
	cmd.Flags().Int("limit", 0, "maximum number of records (0 for all)")
	return cmd
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().Int("tax-year", 0, "only this tax year")
	cmd.Flags().String("broker", "", "broker label contains")
	cmd.Flags().String("issuer", "", "issuer name contains")
	cmd.Flags().String("status", "", "PENDING, VALIDATED or PUBLISHED")
}

func recordFlags(cmd *cobra.Command) (service.RecordFilter, error) {
	var f service.RecordFilter
	if year, _ := cmd.Flags().GetInt("tax-year"); year != 0 {
		f.TaxYear = &year
	}
	f.Broker, _ = cmd.Flags().GetString("broker")
	f.IssuerName, _ = cmd.Flags().GetString("issuer")
	status, _ := cmd.Flags().GetString("status")
	f.Status = model.RecordStatus(strings.ToUpper(strings.TrimSpace(status)))
	if f.Status != "" && !f.Status.IsValid() {
		return f, fmt.Errorf("unknown status %q", status)
	}
	if cmd.Flags().Lookup("limit") != nil {
		f.Limit, _ = cmd.Flags().GetInt("limit")
	}
	return f, nil
}

func reportDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Headline counters and recent activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, []model.Role{model.RoleManager, model.RoleAdministrator}, func(store *storage.SQLStorage, _ *model.User) error {
				d, err := report.NewReporter(store).Dashboard(cmd.Context())
				if err != nil {
					return err
				}

				fmt.Println(cli.RenderBox("Dashboard", fmt.Sprintf(
					"Qualified records: %d\nTabular files: %d\nPDF documents: %d\nValidation errors: %d",
					d.Records, d.TabularFiles, d.PDFDocuments, d.ValidationErrors)))
				fmt.Println(cli.RenderTable(auditHeader, auditRows(d.RecentActivity)))
				return nil
			})
		},
	}
}

func reportErrorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List validation errors, optionally of one file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fileID, _ := cmd.Flags().GetInt64("file")
			roles := []model.Role{model.RoleAnalyst, model.RoleAdministrator, model.RoleAuditor}
			return withStore(cmd, roles, func(store *storage.SQLStorage, _ *model.User) error {
				var filter *int64
				if fileID > 0 {
					filter = &fileID
				}
				errs, err := store.ListValidationErrors(cmd.Context(), filter)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(errs))
				for _, e := range errs {
					rows = append(rows, []string{
						strconv.FormatInt(e.SourceFileID, 10),
						strconv.Itoa(e.LineNumber),
						e.Message,
					})
				}
				fmt.Println(cli.RenderTable([]string{"File", "Line", "Message"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().Int64("file", 0, "source file id")
	return cmd
}

var auditHeader = []string{"When", "User", "Action", "Entity", "Detail"}

func auditRows(entries []model.AuditEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		entity := e.EntityKind
		if e.EntityID != nil {
			entity = fmt.Sprintf("%s #%d", e.EntityKind, *e.EntityID)
		}
		rows = append(rows, []string{
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.ActorName,
			e.Action,
			entity,
			e.Detail,
		})
	}
	return rows
}

func reportAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Show the audit log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, []model.Role{model.RoleAdministrator, model.RoleAuditor}, func(store *storage.SQLStorage, _ *model.User) error {
				entries, err := activity.NewLog(store, nil).Entries(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println(cli.RenderTable(auditHeader, auditRows(entries)))
				return nil
			})
		},
	}
}
