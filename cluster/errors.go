package cluster

import (
	"errors"
	"regexp"
	"strings"

	"github.com/getpup/dcprobe"
)

// Messages reported by replicas whose local catalog does not know the object yet.
var notConfiguredMessages = []string{
	"unconfigured table",
	"unconfigured columnfamily",
}

// missingCatalogEntry matches a missing keyspace, database, relation or table
// named at the start of a message or of a wrapped cause. Missing columns,
// functions, types and roles do not match.
var missingCatalogEntry = regexp.MustCompile(`(?i)(^|: )(keyspace|database|relation|table) \S+ does not exist`)

// Messages reported when a namespace or object is created twice.
var conflictMessages = []string{
	"already exists",
	"cannot add existing keyspace",
	"cannot add already existing",
}

// IsObjectNotConfigured reports whether err means the object is not yet in the
// local catalog. Drivers wrap dcprobe.ErrObjectNotConfigured when they can
// tell from an error code; otherwise the message decides.
func IsObjectNotConfigured(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, dcprobe.ErrObjectNotConfigured) {
		return true
	}
	msg := err.Error()
	return containsAny(msg, notConfiguredMessages) || missingCatalogEntry.MatchString(msg)
}

// IsSchemaConflict reports whether err means the namespace or object already exists.
func IsSchemaConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, dcprobe.ErrSchemaConflict) {
		return true
	}
	return containsAny(err.Error(), conflictMessages)
}

func containsAny(msg string, needles []string) bool {
	msg = strings.ToLower(msg)
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}
