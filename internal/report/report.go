// Package report aggregates qualified records into the consolidated,
// filtered and dashboard views.
package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
)

// DashboardActivity is how many audit entries the dashboard shows.
const DashboardActivity = 8

// FactorPlaces is the precision of the average factor.
const FactorPlaces = 6

// Reporter builds reports from storage.
type Reporter struct {
	store service.Storage
}

// NewReporter creates a reporter.
func NewReporter(store service.Storage) *Reporter {
	return &Reporter{store: store}
}

// Consolidated returns one summary per tax year, ascending by year.
func (r *Reporter) Consolidated(ctx context.Context) ([]service.YearSummary, error) {
	records, err := r.store.ListRecords(ctx, service.RecordFilter{})
	if err != nil {
		return nil, err
	}
	return ByYear(records), nil
}

// Records summarizes the records matching filter.
func (r *Reporter) Records(ctx context.Context, filter service.RecordFilter) (service.RecordsSummary, error) {
	records, err := r.store.ListRecords(ctx, filter)
	if err != nil {
		return service.RecordsSummary{}, err
	}
	return Summarize(records), nil
}

// Dashboard collects the headline counters and the latest activity.
func (r *Reporter) Dashboard(ctx context.Context) (*service.DashboardSummary, error) {
	var (
		d   service.DashboardSummary
		err error
	)

	if d.Records, err = r.store.CountRecords(ctx); err != nil {
		return nil, err
	}
	if d.TabularFiles, err = r.store.CountSourceFiles(ctx, model.KindCSV, model.KindXLSX, model.KindXLS); err != nil {
		return nil, err
	}
	if d.PDFDocuments, err = r.store.CountPDFDocuments(ctx); err != nil {
		return nil, err
	}
	if d.ValidationErrors, err = r.store.CountValidationErrors(ctx); err != nil {
		return nil, err
	}
	if d.RecentActivity, err = r.store.ListAuditEntries(ctx, DashboardActivity); err != nil {
		return nil, err
	}

	return &d, nil
}

// ByYear groups records by tax year.
func ByYear(records []model.QualifiedRecord) []service.YearSummary {
	byYear := make(map[int]*service.YearSummary)
	for _, rec := range records {
		s, ok := byYear[rec.TaxYear]
		if !ok {
			s = &service.YearSummary{TaxYear: rec.TaxYear}
			byYear[rec.TaxYear] = s
		}
		s.Count++
		s.TotalGross = s.TotalGross.Add(rec.GrossAmount)
		s.TotalQualified = s.TotalQualified.Add(rec.QualifiedAmount)
	}

	out := make([]service.YearSummary, 0, len(byYear))
	for _, s := range byYear {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaxYear < out[j].TaxYear })
	return out
}

// Summarize totals a record set. The average factor of an empty set is zero.
func Summarize(records []model.QualifiedRecord) service.RecordsSummary {
	var s service.RecordsSummary
	factors := decimal.Zero
	for _, rec := range records {
		s.Count++
		s.TotalGross = s.TotalGross.Add(rec.GrossAmount)
		s.TotalQualified = s.TotalQualified.Add(rec.QualifiedAmount)
		factors = factors.Add(rec.Factor)
	}
	if s.Count > 0 {
		s.AverageFactor = factors.Div(decimal.NewFromInt(int64(s.Count))).Round(FactorPlaces)
	}
	return s
}
