// Package all registers every store backend with the factory.
// Binaries blank-import this package; the config decides which kind to use,
// but support for all of them must be compiled in.
package all

import (
	// Backend registrations.
	_ "comex/internal/store/mssql"
	_ "comex/internal/store/postgres"
	_ "comex/internal/store/sqlite"

	// The mssql store package does not register a driver itself; the
	// "sqlserver" database/sql driver is registered here.
	_ "github.com/microsoft/go-mssqldb"
)
