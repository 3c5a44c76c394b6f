package appfs

import "embed"

// FS holds the alert store migrations.
//
//go:embed migrations/*.sql
var FS embed.FS
