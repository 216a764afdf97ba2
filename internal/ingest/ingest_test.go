package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
	"github.com/Veraticus/nuam/internal/testutil"
	"github.com/Veraticus/nuam/internal/validation"
)

func storeFile(t *testing.T, db *testutil.TestDB, path string, kind model.FileKind, owner *model.User) *model.SourceFile {
	t.Helper()
	f := &model.SourceFile{
		OriginalName: "upload" + kind.Extension(),
		StoredPath:   path,
		Kind:         kind,
		UploadedBy:   owner.ID,
	}
	require.NoError(t, db.Storage.CreateSourceFile(context.Background(), f))
	return f
}

func fileErrors(t *testing.T, db *testutil.TestDB, id int64) []model.ValidationError {
	t.Helper()
	errs, err := db.Storage.ListValidationErrors(context.Background(), &id)
	require.NoError(t, err)
	return errs
}

func fileRecords(t *testing.T, db *testutil.TestDB, id int64) []model.QualifiedRecord {
	t.Helper()
	records, err := db.Storage.ListRecords(context.Background(), service.RecordFilter{SourceFileID: &id})
	require.NoError(t, err)
	return records
}

func TestIngestTabular_AllValid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	broker := db.User("broker")
	path := testutil.WriteCSV(t, "ok.csv", testutil.TaxHeader,
		[]string{"12.345.678-9", "Juan Perez", "76.123.456-K", "Andina SpA", "1000", "0,12345", "2024"},
		[]string{"9.876.543-2", "Maria Soto", "77.777.777-7", "Pacifico SA", "250.5", "0,5", "2023"},
	)
	file := storeFile(t, db, path, model.KindCSV, broker)

	res, err := NewOrchestrator(db.Storage, nil).IngestTabular(context.Background(), file, broker)
	require.NoError(t, err)
	assert.Equal(t, Result{OK: 2, Failed: 0, Valid: true}, res)
	assert.Empty(t, fileErrors(t, db, file.ID))

	records := fileRecords(t, db, file.ID)
	require.Len(t, records, 2)
	byIssuer := map[string]model.QualifiedRecord{}
	for _, r := range records {
		byIssuer[r.Issuer.TaxID] = r
	}

	first := byIssuer["76.123.456-K"]
	assert.Equal(t, "123.45", first.QualifiedAmount.StringFixed(2))
	assert.Equal(t, 2024, first.TaxYear)
	assert.Equal(t, model.SourceSpreadsheet, first.Source)
	assert.Equal(t, model.RecordPending, first.Status)
	assert.Equal(t, "broker", first.BrokerLabel)
	require.NotNil(t, first.ResponsibleID)
	assert.Equal(t, broker.ID, *first.ResponsibleID)

	second := byIssuer["77.777.777-7"]
	assert.True(t, decimal.RequireFromString("250.5").Equal(second.GrossAmount))
	assert.Equal(t, "125.25", second.QualifiedAmount.StringFixed(2))
}

func TestIngestTabular_RowErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	broker := db.User("broker")
	path := testutil.WriteCSV(t, "mixed.csv", testutil.TaxHeader,
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "1000", "0,5", "2024"},
		[]string{"1-9", "", "76.123.456-K", "Andina SpA", "-5", "abc", "1999"},
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "10", "1", "2024"},
	)
	file := storeFile(t, db, path, model.KindCSV, broker)

	res, err := NewOrchestrator(db.Storage, nil).IngestTabular(context.Background(), file, broker)
	require.NoError(t, err)
	assert.Equal(t, Result{OK: 2, Failed: 1, Valid: true}, res)

	errs := fileErrors(t, db, file.ID)
	msgs := make([]string, len(errs))
	for i, e := range errs {
		assert.Equal(t, 3, e.LineNumber)
		msgs[i] = e.Message
	}
	assert.ElementsMatch(t, []string{
		validation.Required(model.ColContributorName),
		validation.MsgGrossNotPositive,
		validation.MsgFactorNotNumeric,
		validation.MsgTaxYearOutOfRange,
	}, msgs)
	assert.Len(t, fileRecords(t, db, file.ID), 2)
}

func TestIngestTabular_HugeExponentIsNotNumeric(t *testing.T) {
	db := testutil.SetupTestDB(t)
	broker := db.User("broker")
	path := testutil.WriteCSV(t, "exp.csv", testutil.TaxHeader,
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "1e9999999", "0.5", "2024"},
	)
	file := storeFile(t, db, path, model.KindCSV, broker)

	res, err := NewOrchestrator(db.Storage, nil).IngestTabular(context.Background(), file, broker)
	require.NoError(t, err)
	assert.Equal(t, Result{OK: 0, Failed: 1, Valid: true}, res)

	errs := fileErrors(t, db, file.ID)
	require.Len(t, errs, 1)
	assert.Equal(t, validation.MsgGrossNotNumeric, errs[0].Message)
	assert.Empty(t, fileRecords(t, db, file.ID))
}

func TestIngestTabular_MissingColumns(t *testing.T) {
	db := testutil.SetupTestDB(t)
	broker := db.User("broker")
	header := []string{"RUT Contribuyente", "Nombre Contribuyente", "RUT Emisor", "Nombre Emisor", "Monto Bruto", "Anio Tributario"}
	path := testutil.WriteCSV(t, "nofactor.csv", header,
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "1000", "2024"},
	)
	file := storeFile(t, db, path, model.KindCSV, broker)

	res, err := NewOrchestrator(db.Storage, nil).IngestTabular(context.Background(), file, broker)
	require.NoError(t, err)
	assert.Equal(t, Result{Valid: false}, res)

	errs := fileErrors(t, db, file.ID)
	require.Len(t, errs, 1)
	assert.Equal(t, SchemaLine, errs[0].LineNumber)
	assert.Equal(t,
		"missing required columns: factor; found: rut_contribuyente, nombre_contribuyente, rut_emisor, nombre_emisor, monto_bruto, anio_tributario",
		errs[0].Message)
	assert.Empty(t, fileRecords(t, db, file.ID))
}

func TestIngestTabular_ReingestReplacesErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	broker := db.User("broker")
	path := testutil.WriteCSV(t, "bad.csv", testutil.TaxHeader,
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "0", "0,5", "2024"},
	)
	file := storeFile(t, db, path, model.KindCSV, broker)
	o := NewOrchestrator(db.Storage, nil)

	for n := 0; n < 2; n++ {
		res, err := o.IngestTabular(context.Background(), file, broker)
		require.NoError(t, err)
		assert.Equal(t, Result{OK: 0, Failed: 1, Valid: true}, res)
	}

	errs := fileErrors(t, db, file.ID)
	require.Len(t, errs, 1)
	assert.Equal(t, validation.MsgGrossNotPositive, errs[0].Message)
	assert.Equal(t, 2, errs[0].LineNumber)
}

func TestIngestTabular_IssuerKeepsFirstName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	broker := db.User("broker")
	path := testutil.WriteCSV(t, "dup.csv", testutil.TaxHeader,
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "100", "1", "2024"},
		[]string{"2-7", "Ana", "76.123.456-K", "Andina Renamed", "200", "1", "2024"},
	)
	file := storeFile(t, db, path, model.KindCSV, broker)

	res, err := NewOrchestrator(db.Storage, nil).IngestTabular(context.Background(), file, broker)
	require.NoError(t, err)
	assert.Equal(t, 2, res.OK)

	issuers, err := db.Storage.ListIssuers(context.Background())
	require.NoError(t, err)
	require.Len(t, issuers, 1)
	assert.Equal(t, "Andina SpA", issuers[0].Name)

	for _, r := range fileRecords(t, db, file.ID) {
		assert.Equal(t, issuers[0].ID, r.Issuer.ID)
	}
}

func TestIngestTabular_XLSX(t *testing.T) {
	db := testutil.SetupTestDB(t)
	admin := db.User("admin")
	path := testutil.WriteXLSX(t, "ok.xlsx", testutil.TaxHeader,
		[]any{"1-9", "Juan", "76.123.456-K", "Andina SpA", 3200000, 0.35, 2024},
	)
	file := storeFile(t, db, path, model.KindXLSX, admin)

	res, err := NewOrchestrator(db.Storage, nil).IngestTabular(context.Background(), file, admin)
	require.NoError(t, err)
	assert.Equal(t, Result{OK: 1, Valid: true}, res)

	records := fileRecords(t, db, file.ID)
	require.Len(t, records, 1)
	assert.Equal(t, "1120000.00", records[0].QualifiedAmount.StringFixed(2))
}

func TestIngestTabular_UnreadableFile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	broker := db.User("broker")
	file := storeFile(t, db, t.TempDir()+"/missing.xlsx", model.KindXLSX, broker)

	_, err := NewOrchestrator(db.Storage, nil).IngestTabular(context.Background(), file, broker)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnreadableFile)
	assert.Empty(t, fileErrors(t, db, file.ID))
}

func TestIngestTabular_RequiresActor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	file := storeFile(t, db, "x.csv", model.KindCSV, db.User("broker"))

	_, err := NewOrchestrator(db.Storage, nil).IngestTabular(context.Background(), file, nil)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = NewOrchestrator(db.Storage, nil).IngestTabular(context.Background(), nil, db.User("broker"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

var errInjected = errors.New("injected failure")

// failingStorage hands out transactions whose CreateRecord fails after a
// number of successful calls.
type failingStorage struct {
	service.Storage
	okCalls int
}

func (f *failingStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	tx, err := f.Storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Transaction: tx, left: f.okCalls}, nil
}

type failingTx struct {
	service.Transaction
	left int
}

func (tx *failingTx) CreateRecord(ctx context.Context, r *model.QualifiedRecord) error {
	if tx.left == 0 {
		return errInjected
	}
	tx.left--
	return tx.Transaction.CreateRecord(ctx, r)
}

func TestIngestTabular_RollsBackOnStorageFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	broker := db.User("broker")
	path := testutil.WriteCSV(t, "partial.csv", testutil.TaxHeader,
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "100", "1", "2024"},
		[]string{"1-9", "Juan", "76.123.456-K", "Andina SpA", "0", "1", "2024"},
		[]string{"1-9", "Juan", "77.777.777-7", "Pacifico SA", "100", "1", "2024"},
	)
	file := storeFile(t, db, path, model.KindCSV, broker)

	o := NewOrchestrator(&failingStorage{Storage: db.Storage, okCalls: 1}, nil)
	_, err := o.IngestTabular(context.Background(), file, broker)
	require.ErrorIs(t, err, errInjected)
	assert.Contains(t, err.Error(), "line 4")

	assert.Empty(t, fileRecords(t, db, file.ID))
	assert.Empty(t, fileErrors(t, db, file.ID))
	issuers, err := db.Storage.ListIssuers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, issuers)
}
