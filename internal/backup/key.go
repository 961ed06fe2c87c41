package backup

import (
	"strings"
	"time"
)

// DumpName returns the object file name for a dump taken at ts.
func DumpName(ts time.Time, compressed bool) string {
	name := "backup-" + ts.UTC().Format("20060102-150405") + ".sql"
	if compressed {
		name += ".gz"
	}
	return name
}

// ObjectKey joins an optional bucket prefix with the object name,
// normalising stray slashes on either side.
func ObjectKey(prefix, name string) string {
	if prefix == "" {
		return strings.TrimLeft(name, "/")
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(name, "/")
}
