package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
)

const dateLayout = "2006-01-02"

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", common.ErrInvalidInput, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", common.ErrInvalidInput, key, raw)
	}
	return &n, nil
}

func queryID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: %s=%q", common.ErrInvalidInput, key, raw)
	}
	return &n, nil
}

// dateRange reads from/to as calendar dates. to is inclusive, so the
// returned upper bound is the start of the following day.
func dateRange(r *http.Request) (from, to *time.Time, err error) {
	parse := func(key string) (*time.Time, error) {
		raw := strings.TrimSpace(r.URL.Query().Get(key))
		if raw == "" {
			return nil, nil
		}
		t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", common.ErrInvalidInput, key, raw)
		}
		return &t, nil
	}

	if from, err = parse("from"); err != nil {
		return nil, nil, err
	}
	if to, err = parse("to"); err != nil {
		return nil, nil, err
	}
	if to != nil {
		next := to.AddDate(0, 0, 1)
		to = &next
	}
	return from, to, nil
}

// recordFilter reads the record listing filters from the query string.
func recordFilter(r *http.Request) (service.RecordFilter, error) {
	q := r.URL.Query()
	f := service.RecordFilter{
		Broker:     strings.TrimSpace(q.Get("broker")),
		IssuerName: strings.TrimSpace(q.Get("issuer")),
		Status:     model.RecordStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
	}

	var err error
	if f.TaxYear, err = queryInt(r, "tax_year"); err != nil {
		return f, err
	}
	if f.SourceFileID, err = queryID(r, "source_file"); err != nil {
		return f, err
	}
	if f.From, f.To, err = dateRange(r); err != nil {
		return f, err
	}
	return f, nil
}
