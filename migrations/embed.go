// Package migrations holds the schema for every supported database dialect.
package migrations

import "embed"

// FS contains sqlite/, postgres/ and mysql/ subdirectories of ordered *.sql files.
//
//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
