package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/nuam/internal/activity"
	"github.com/Veraticus/nuam/internal/cli"
	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/intake"
	"github.com/Veraticus/nuam/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest tax files and PDF certificates",
		Long: `Ingest CSV, XLSX and XLS tax files, or PDF certificates, into the record store.

Each file is stored, validated row by row and marked PROCESSED or HAS_ERRORS.
Validation errors can be reviewed later with "nuam report errors".

Examples:
  # Ingest a single spreadsheet as broker jperez
  nuam ingest --user jperez ~/Downloads/calificaciones_2024.xlsx

  # Ingest every CSV in a directory
  nuam ingest --user jperez ~/Downloads/uploads/*.csv

  # Ingest a PDF certificate with a label
  nuam ingest --user jperez --name "Andina 2024" certificado.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().String("name", "", "label for PDF certificates (default: the file name)")

	return cmd
}

type ingestRow struct {
	name   string
	kind   model.FileKind
	status string
	ok     string
	failed string
	note   string
}

func runIngest(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")

	var files []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to ingest")
	}

	ctx := cmd.Context()
	store, cfg, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	user, err := currentUser(ctx, store)
	if err != nil {
		return err
	}

	logger := slog.Default()
	log := activity.NewLog(store, logger)
	svc := intake.NewService(store, log, log, cfg.Uploads.Dir, logger)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Ingesting files...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	results := make([]ingestRow, 0, len(files))
	failures := 0
	for _, path := range files {
		row := ingestFile(cmd, svc, user, path, name)
		if row.status != string(model.FileProcessed) {
			failures++
		}
		common.LogInfo("file ingested", common.Fields{
			"file":   row.name,
			"status": row.status,
			"ok":     row.ok,
			"failed": row.failed,
		})
		results = append(results, row)
		_ = bar.Add(1)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.name, string(r.kind), r.status, r.ok, r.failed, r.note})
	}
	fmt.Println(cli.RenderTable([]string{"File", "Kind", "Status", "OK", "Errors", "Note"}, rows))

	if failures > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d of %d files need attention", failures, len(files))))
		fmt.Println(cli.FormatInfo(`Row errors are listed by "nuam report errors --file <id>"`))
	} else {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("%d files processed", len(files))))
	}
	return nil
}

// ingestFile runs one file through the intake service and summarises the
// outcome. Errors are reported in the row so the remaining files still run.
func ingestFile(cmd *cobra.Command, svc *intake.Service, user *model.User, path, name string) ingestRow {
	base := filepath.Base(path)
	row := ingestRow{name: base, status: string(model.FileHasErrors)}

	kind, ok := model.KindFromExtension(base)
	if !ok {
		row.note = common.ErrUnsupportedFormat.Error()
		return row
	}
	row.kind = kind

	need := []model.Role{model.RoleBroker, model.RoleAnalyst, model.RoleAdministrator}
	if kind == model.KindPDF {
		need = append(need, model.RoleAuditor, model.RoleManager)
	}
	if err := requireRoles(user, need...); err != nil {
		row.note = common.UserMessage(err)
		return row
	}

	f, err := os.Open(path) //nolint:gosec // user-supplied path
	if err != nil {
		row.note = err.Error()
		return row
	}
	defer func() { _ = f.Close() }()

	ctx := cmd.Context()
	if kind == model.KindPDF {
		out, err := svc.UploadPDF(ctx, user, name, base, f)
		if err != nil {
			row.note = common.UserMessage(err)
			return row
		}
		if out.Accepted() {
			row.status = string(model.FileProcessed)
			row.ok = "1"
			row.note = fmt.Sprintf("record #%d", out.Record.ID)
		} else {
			row.failed = "1"
			row.note = fmt.Sprintf("missing %v", out.Missing)
		}
		return row
	}

	out, err := svc.UploadTabular(ctx, user, base, f)
	if err != nil {
		row.note = common.UserMessage(err)
		return row
	}
	row.ok = strconv.Itoa(out.Result.OK)
	row.failed = strconv.Itoa(out.Result.Failed)
	switch {
	case !out.Result.Valid:
		row.note = "missing required columns"
	case out.Result.Failed == 0:
		row.status = string(model.FileProcessed)
	}
	row.note = fmt.Sprintf("file #%d %s", out.File.ID, row.note)
	return row
}
