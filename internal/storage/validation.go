package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/nuam/internal/model"
)

// Validation errors.
var (
	ErrNilContext           = errors.New("context cannot be nil")
	ErrEmptyString          = errors.New("string parameter cannot be empty")
	ErrNilParameter         = errors.New("parameter cannot be nil")
	ErrInvalidID            = errors.New("id must be positive")
	ErrInvalidDateRange     = errors.New("start date must be before end date")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidRecord        = errors.New("invalid qualified record")
	ErrInvalidSourceFile    = errors.New("invalid source file")
	ErrInvalidUser          = errors.New("invalid user")
	ErrUnknownDriver        = errors.New("unknown database driver")
	ErrNestedTransaction    = errors.New("nested transactions are not supported")
	ErrMigrateInTransaction = errors.New("migrations cannot be run within a transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidID, paramName)
	}
	return nil
}

func validateUser(u *model.User) error {
	if u == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: missing username", ErrInvalidUser)
	}
	if u.Role != "" {
		if _, ok := model.ParseRole(string(u.Role)); !ok {
			return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
		}
	}
	return nil
}

func validateSourceFile(f *model.SourceFile) error {
	if f == nil {
		return fmt.Errorf("%w: source file", ErrNilParameter)
	}
	if strings.TrimSpace(f.OriginalName) == "" {
		return fmt.Errorf("%w: missing original name", ErrInvalidSourceFile)
	}
	switch f.Kind {
	case model.KindCSV, model.KindXLSX, model.KindXLS, model.KindPDF:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSourceFile, f.Kind)
	}
	if f.Status != "" && !f.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	return nil
}

func validateRecord(r *model.QualifiedRecord) error {
	if r == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if r.Issuer.ID <= 0 {
		return fmt.Errorf("%w: missing issuer", ErrInvalidRecord)
	}
	if r.TaxYear == 0 {
		return fmt.Errorf("%w: missing tax year", ErrInvalidRecord)
	}
	switch r.Source {
	case model.SourceSpreadsheet, model.SourcePDF, model.SourceManual:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRecord, r.Source)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}
	return nil
}
