// Package records manages qualified records entered or corrected by hand.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/nuam/internal/activity"
	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/numeric"
	"github.com/Veraticus/nuam/internal/service"
	"github.com/Veraticus/nuam/internal/validation"
)

// Input carries the editable fields of a record.
type Input struct {
	GrossAmount decimal.Decimal    `json:"gross_amount"`
	Factor      decimal.Decimal    `json:"factor"`
	Instrument  string             `json:"instrument"`
	Status      model.RecordStatus `json:"status"`
	IssuerID    int64              `json:"issuer_id"`
	TaxYear     int                `json:"tax_year"`
}

// InvalidError lists every rule a record breaks.
type InvalidError struct {
	Messages []string
}

func (e *InvalidError) Error() string {
	return "invalid record: " + strings.Join(e.Messages, "; ")
}

// Is makes InvalidError match common.ErrInvalidInput.
func (e *InvalidError) Is(target error) bool {
	return target == common.ErrInvalidInput
}

// Service implements record management.
type Service struct {
	store service.Storage
	audit activity.Recorder
}

// NewService creates a record service.
func NewService(store service.Storage, audit activity.Recorder) *Service {
	return &Service{store: store, audit: audit}
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id int64) (*model.QualifiedRecord, error) {
	return s.store.GetRecord(ctx, id)
}

// List returns the records matching filter, newest first.
func (s *Service) List(ctx context.Context, filter service.RecordFilter) ([]model.QualifiedRecord, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: status %q", common.ErrInvalidInput, filter.Status)
	}
	return s.store.ListRecords(ctx, filter)
}

// Create stores a manual record owned by actor. A blank status is PENDING.
func (s *Service) Create(ctx context.Context, actor *model.User, in Input) (*model.QualifiedRecord, error) {
	if actor == nil {
		return nil, common.ErrUnauthenticated
	}
	if in.Status == "" {
		in.Status = model.RecordPending
	}

	record := &model.QualifiedRecord{
		BrokerLabel:   actor.Username,
		Source:        model.SourceManual,
		ResponsibleID: &actor.ID,
	}
	if err := s.apply(ctx, record, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateRecord(ctx, record); err != nil {
		return nil, err
	}

	s.record(ctx, actor, activity.ActionCreateRecord, record)
	return record, nil
}

// Update rewrites the editable fields of record id.
func (s *Service) Update(ctx context.Context, actor *model.User, id int64, in Input) (*model.QualifiedRecord, error) {
	if actor == nil {
		return nil, common.ErrUnauthenticated
	}
	record, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, record, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRecord(ctx, record); err != nil {
		return nil, err
	}

	s.record(ctx, actor, activity.ActionUpdateRecord, record)
	return record, nil
}

// Delete removes record id.
func (s *Service) Delete(ctx context.Context, actor *model.User, id int64) error {
	if actor == nil {
		return common.ErrUnauthenticated
	}
	record, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRecord(ctx, id); err != nil {
		return err
	}

	s.record(ctx, actor, activity.ActionDeleteRecord, record)
	return nil
}

// apply copies in onto record, resolves the issuer and validates the result.
func (s *Service) apply(ctx context.Context, record *model.QualifiedRecord, in Input) error {
	record.Issuer = model.Issuer{}
	if in.IssuerID > 0 {
		issuer, err := s.store.GetIssuer(ctx, in.IssuerID)
		switch {
		case errors.Is(err, common.ErrNotFound):
		case err != nil:
			return err
		default:
			record.Issuer = *issuer
		}
	}

	// Out of range exponents make rounding unbounded, so they stop here.
	var rangeMsgs []string
	if numeric.CheckRange(in.GrossAmount) != nil {
		rangeMsgs = append(rangeMsgs, validation.MsgGrossNotNumeric)
	}
	if numeric.CheckRange(in.Factor) != nil {
		rangeMsgs = append(rangeMsgs, validation.MsgFactorNotNumeric)
	}
	if len(rangeMsgs) > 0 {
		return &InvalidError{Messages: rangeMsgs}
	}

	record.GrossAmount = in.GrossAmount
	record.Factor = in.Factor
	record.TaxYear = in.TaxYear
	record.Instrument = strings.TrimSpace(in.Instrument)
	record.Status = in.Status
	record.Recompute()

	if msgs := validation.Record(record); len(msgs) > 0 {
		return &InvalidError{Messages: msgs}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor *model.User, action string, r *model.QualifiedRecord) {
	detail := fmt.Sprintf("issuer=%s year=%d qualified=%s", r.Issuer.TaxID, r.TaxYear, r.QualifiedAmount.StringFixed(2))
	if err := s.audit.Record(ctx, actor, action, activity.EntityRecord, r.ID, detail); err != nil {
		common.LogError(err, "audit failed", common.Fields{"record_id": r.ID, "action": action})
	}
}
