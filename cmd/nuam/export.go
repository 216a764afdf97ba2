package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/nuam/internal/cli"
	"github.com/Veraticus/nuam/internal/config"
	"github.com/Veraticus/nuam/internal/export"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/report"
	"github.com/Veraticus/nuam/internal/sheets"
	"github.com/Veraticus/nuam/internal/storage"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records and reports",
	}
	cmd.AddCommand(exportExcelCmd(), exportPDFCmd(), exportSheetsCmd())
	return cmd
}

var allRoles = []model.Role{model.RoleBroker, model.RoleAnalyst, model.RoleAdministrator, model.RoleAuditor, model.RoleManager}

// writeFile creates path and hands it to render, removing it again when
// render fails.
func writeFile(path string, render func(f *os.File) error) error {
	f, err := os.Create(path) //nolint:gosec // user-supplied output path
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func exportExcelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "excel",
		Short: "Write the filtered records to an XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("out")
			filter, err := recordFlags(cmd)
			if err != nil {
				return err
			}

			return withStore(cmd, allRoles, func(store *storage.SQLStorage, _ *model.User) error {
				list, err := store.ListRecords(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if err := writeFile(out, func(f *os.File) error { return export.Excel(f, list) }); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Wrote %d records to %s", len(list), out)))
				return nil
			})
		},
	}

	addRecordFlags(cmd)
	cmd.Flags().StringP("out", "o", "records.xlsx", "output file")
	return cmd
}

func exportPDFCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Write the management report as PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("out")

			return withStore(cmd, []model.Role{model.RoleManager, model.RoleAdministrator}, func(store *storage.SQLStorage, _ *model.User) error {
				reporter := report.NewReporter(store)
				d, err := reporter.Dashboard(cmd.Context())
				if err != nil {
					return err
				}
				years, err := reporter.Consolidated(cmd.Context())
				if err != nil {
					return err
				}

				rep := export.ManagementReport{GeneratedAt: time.Now(), Dashboard: d, Years: years}
				if err := writeFile(out, func(f *os.File) error { return export.ManagementPDF(f, rep) }); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess("Wrote management report to " + out))
				return nil
			})
		},
	}

	cmd.Flags().StringP("out", "o", "management-report.pdf", "output file")
	return cmd
}

func exportSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Publish the records report to Google Sheets",
		Long: `Publish the yearly totals and the filtered record details to a Google
Sheets spreadsheet.

Credentials come from the sheets.* configuration keys or the
GOOGLE_SHEETS_* environment variables: either a service account key file
or an OAuth2 client id, secret and refresh token.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := recordFlags(cmd)
			if err != nil {
				return err
			}
			sheetsCfg, err := config.LoadSheetsConfig()
			if err != nil {
				return err
			}

			roles := []model.Role{model.RoleManager, model.RoleAdministrator, model.RoleAuditor}
			return withStore(cmd, roles, func(store *storage.SQLStorage, _ *model.User) error {
				ctx := cmd.Context()
				list, err := store.ListRecords(ctx, filter)
				if err != nil {
					return err
				}

				writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
				if err != nil {
					return err
				}
				rep := &sheets.Report{
					GeneratedAt: time.Now(),
					Summary:     report.Summarize(list),
					Years:       report.ByYear(list),
					Records:     list,
				}
				if err := writer.Write(ctx, rep); err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Published %d records to Google Sheets", len(list))))
				return nil
			})
		},
	}

	addRecordFlags(cmd)
	return cmd
}
