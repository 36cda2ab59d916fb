package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/existflow/clientpulse/internal/apperr"
)

type scanner interface {
	Scan(dest ...any) error
}

// timeLayout is fixed width so stored timestamps sort chronologically as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func mustTime(v time.Time) string {
	return v.UTC().Format(timeLayout)
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return mustTime(*v)
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseRequiredTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", v, err)
	}
	return t, nil
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseRequiredTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// checkRowsAffected maps an update or delete that matched nothing to NotFound
func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

func notFoundOr(err error, entity, id string) error {
	if err == sql.ErrNoRows {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}
