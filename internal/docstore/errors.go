package docstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/paperasse/internal/apperr"
)

// translate maps unique-constraint violations onto the shared sentinels.
// A second successor for the same predecessor is a conflict on the version
// chain; any other uniqueness failure means the record already exists.
func translate(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return err
	}
	if strings.Contains(sqliteErr.Error(), "replaces_document_id") {
		return fmt.Errorf("%w: %v", apperr.ErrConflict, err)
	}
	return fmt.Errorf("%w: %v", apperr.ErrAlreadyExists, err)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
