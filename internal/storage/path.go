package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

const catalogPrefix = "catalog"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildCatalogSnapshotPath returns the key of an immutable snapshot of table
// taken at the given time.
func BuildCatalogSnapshotPath(tableName string, takenAt time.Time) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	ts := takenAt.UTC()
	return path.Join(
		catalogPrefix,
		tableName,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("snapshot-%s.parquet", ts.Format("20060102T150405Z")),
	), nil
}

// BuildCurrentSnapshotPath returns the stable key the query engine reads.
func BuildCurrentSnapshotPath(tableName string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return path.Join(catalogPrefix, tableName, "current.parquet"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
