package parquetio

import (
	"fmt"

	"github.com/gyeh/hccscore/internal/model"
)

// ReadMembers opens path, validates the schema, and reads every member row.
func ReadMembers(path string) ([]model.MemberRow, error) {
	t, err := openTable[model.MemberRow](path)
	if err != nil {
		return nil, err
	}
	defer t.close()

	if err := ValidateSchema(t.schema()); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return t.all()
}

// CheckMembers validates the schema of a member file without reading its rows.
func CheckMembers(path string) error {
	t, err := openTable[model.MemberRow](path)
	if err != nil {
		return err
	}
	defer t.close()
	return ValidateSchema(t.schema())
}
