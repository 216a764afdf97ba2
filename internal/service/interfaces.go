// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/nuam/internal/model"
)

// RecordFilter defines filtering options for qualified record queries.
// Zero values leave the corresponding filter off.
type RecordFilter struct {
	From         *time.Time
	To           *time.Time
	TaxYear      *int
	SourceFileID *int64
	Broker       string
	IssuerName   string
	Status       model.RecordStatus
	Limit        int
}

// NotificationFilter defines filtering options for notification queries.
type NotificationFilter struct {
	From   *time.Time
	To     *time.Time
	UserID *int64
	Level  model.NotificationLevel
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ListRoles(ctx context.Context) ([]model.RoleDefinition, error)

	// Issuer operations
	UpsertIssuer(ctx context.Context, taxID, name string) (*model.Issuer, error)
	GetIssuer(ctx context.Context, id int64) (*model.Issuer, error)
	ListIssuers(ctx context.Context) ([]model.Issuer, error)

	// Source file operations
	CreateSourceFile(ctx context.Context, file *model.SourceFile) error
	GetSourceFile(ctx context.Context, id int64) (*model.SourceFile, error)
	UpdateSourceFileStatus(ctx context.Context, id int64, status model.FileStatus, message string) error
	ListSourceFiles(ctx context.Context) ([]model.SourceFile, error)
	CountSourceFiles(ctx context.Context, kinds ...model.FileKind) (int, error)

	// Validation error operations
	ClearValidationErrors(ctx context.Context, sourceFileID int64) error
	SaveValidationErrors(ctx context.Context, errs []model.ValidationError) error
	ListValidationErrors(ctx context.Context, sourceFileID *int64) ([]model.ValidationError, error)
	CountValidationErrors(ctx context.Context) (int, error)

	// Qualified record operations
	CreateRecord(ctx context.Context, record *model.QualifiedRecord) error
	GetRecord(ctx context.Context, id int64) (*model.QualifiedRecord, error)
	UpdateRecord(ctx context.Context, record *model.QualifiedRecord) error
	DeleteRecord(ctx context.Context, id int64) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.QualifiedRecord, error)
	CountRecords(ctx context.Context) (int, error)

	// PDF document operations
	CreatePDFDocument(ctx context.Context, doc *model.PDFDocument) error
	ListPDFDocuments(ctx context.Context, ownerID *int64) ([]model.PDFDocument, error)
	CountPDFDocuments(ctx context.Context) (int, error)

	// Audit and notification operations
	CreateAuditEntry(ctx context.Context, entry *model.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]model.AuditEntry, error)
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64, userID *int64) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// YearSummary aggregates qualified records of one tax year.
type YearSummary struct {
	TotalGross     decimal.Decimal `json:"total_gross"`
	TotalQualified decimal.Decimal `json:"total_qualified"`
	TaxYear        int             `json:"tax_year"`
	Count          int             `json:"count"`
}

// RecordsSummary aggregates a filtered set of qualified records.
type RecordsSummary struct {
	TotalGross     decimal.Decimal `json:"total_gross"`
	TotalQualified decimal.Decimal `json:"total_qualified"`
	AverageFactor  decimal.Decimal `json:"average_factor"`
	Count          int             `json:"count"`
}

// DashboardSummary holds the headline counters of the system.
type DashboardSummary struct {
	RecentActivity   []model.AuditEntry `json:"recent_activity"`
	Records          int                `json:"records"`
	TabularFiles     int                `json:"tabular_files"`
	PDFDocuments     int                `json:"pdf_documents"`
	ValidationErrors int                `json:"validation_errors"`
}
