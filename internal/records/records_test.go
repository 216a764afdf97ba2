package records

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/nuam/internal/activity"
	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
	"github.com/Veraticus/nuam/internal/testutil"
	"github.com/Veraticus/nuam/internal/validation"
)

func setup(t *testing.T) (*testutil.TestDB, *activity.Mock, *Service, *model.Issuer) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	issuer, err := db.Storage.UpsertIssuer(context.Background(), "76.123.456-K", "Andina SpA")
	require.NoError(t, err)
	mock := activity.NewMock()
	return db, mock, NewService(db.Storage, mock), issuer
}

func validInput(issuerID int64) Input {
	return Input{
		IssuerID:    issuerID,
		TaxYear:     2024,
		GrossAmount: decimal.RequireFromString("100.005"),
		Factor:      decimal.NewFromInt(1),
	}
}

func TestCreate(t *testing.T) {
	db, mock, svc, issuer := setup(t)
	analyst := db.User("analyst")

	r, err := svc.Create(context.Background(), analyst, validInput(issuer.ID))
	require.NoError(t, err)
	assert.Positive(t, r.ID)
	assert.Equal(t, model.SourceManual, r.Source)
	assert.Equal(t, model.RecordPending, r.Status)
	assert.Equal(t, "analyst", r.BrokerLabel)
	assert.Equal(t, "100.01", r.QualifiedAmount.StringFixed(2))

	stored, err := svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Andina SpA", stored.Issuer.Name)
	assert.Equal(t, []string{activity.ActionCreateRecord}, mock.Actions())
	assert.Equal(t, r.ID, mock.AuditCalls[0].EntityID)
}

func TestCreate_Invalid(t *testing.T) {
	db, mock, svc, _ := setup(t)

	in := Input{
		IssuerID:    999,
		TaxYear:     1990,
		GrossAmount: decimal.Zero,
		Factor:      decimal.NewFromInt(-1),
		Status:      "ARCHIVED",
	}
	_, err := svc.Create(context.Background(), db.User("admin"), in)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{
		validation.MsgIssuerRequired,
		validation.MsgGrossNotPositive,
		validation.MsgFactorNotPositive,
		validation.MsgTaxYearOutOfRange,
		validation.MsgStatusInvalid,
	}, invalid.Messages)
	assert.Empty(t, mock.AuditCalls)
}

func TestCreate_ExponentOutOfRange(t *testing.T) {
	db, mock, svc, issuer := setup(t)

	in := validInput(issuer.ID)
	in.GrossAmount = decimal.New(1, 9999999)
	in.Factor = decimal.New(5, -9999999)
	_, err := svc.Create(context.Background(), db.User("admin"), in)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []string{validation.MsgGrossNotNumeric, validation.MsgFactorNotNumeric}, invalid.Messages)
	assert.Empty(t, mock.AuditCalls)
}

func TestUpdate_Recomputes(t *testing.T) {
	db, mock, svc, issuer := setup(t)
	admin := db.User("admin")
	ctx := context.Background()

	r, err := svc.Create(ctx, admin, validInput(issuer.ID))
	require.NoError(t, err)

	in := validInput(issuer.ID)
	in.Factor = decimal.RequireFromString("0.5")
	in.Status = model.RecordValidated
	updated, err := svc.Update(ctx, admin, r.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "50.00", updated.QualifiedAmount.StringFixed(2))

	stored, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecordValidated, stored.Status)
	assert.Equal(t, "50.00", stored.QualifiedAmount.StringFixed(2))
	assert.Equal(t, model.SourceManual, stored.Source)
	assert.Equal(t, []string{activity.ActionCreateRecord, activity.ActionUpdateRecord}, mock.Actions())

	_, err = svc.Update(ctx, admin, r.ID+100, in)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	db, mock, svc, issuer := setup(t)
	admin := db.User("admin")
	ctx := context.Background()

	r, err := svc.Create(ctx, admin, validInput(issuer.ID))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, r.ID))
	_, err = svc.Get(ctx, r.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, admin, r.ID), common.ErrNotFound)
	assert.Equal(t, []string{activity.ActionCreateRecord, activity.ActionDeleteRecord}, mock.Actions())
}

func TestList_Filters(t *testing.T) {
	db, _, svc, issuer := setup(t)
	ctx := context.Background()
	other, err := db.Storage.UpsertIssuer(ctx, "77.777.777-7", "Pacifico SA")
	require.NoError(t, err)

	_, err = svc.Create(ctx, db.User("analyst"), validInput(issuer.ID))
	require.NoError(t, err)
	in := validInput(other.ID)
	in.TaxYear = 2023
	_, err = svc.Create(ctx, db.User("admin"), in)
	require.NoError(t, err)

	year := 2023
	list, err := svc.List(ctx, service.RecordFilter{TaxYear: &year})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Pacifico SA", list[0].Issuer.Name)

	list, err = svc.List(ctx, service.RecordFilter{Broker: "ANAL"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "analyst", list[0].BrokerLabel)

	list, err = svc.List(ctx, service.RecordFilter{IssuerName: "andina"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.List(ctx, service.RecordFilter{Status: "NOPE"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestRequiresActor(t *testing.T) {
	_, _, svc, issuer := setup(t)
	_, err := svc.Create(context.Background(), nil, validInput(issuer.ID))
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.ErrorIs(t, svc.Delete(context.Background(), nil, 1), common.ErrUnauthenticated)
}
