// Package schema builds the DDL and DML a seed run executes, in the SQL
// dialect of each supported backend.
package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dbseed/internal/core"
)

// Table is the table every run creates and seeds.
const Table = "Users"

// MaxNameLength is the width of the Name column.
const MaxNameLength = 50

var ErrNoSeed = errors.New("no seed rows")

// Dialect holds the backend-specific pieces of SQL.
type Dialect struct {
	Name string
	// CreateTable creates Users only if it does not exist yet.
	CreateTable string
	// backslashEscapes is set for dialects that treat \ in literals as an escape.
	backslashEscapes bool
	// nPrefix marks string literals as Unicode (N'...') for NVARCHAR columns.
	nPrefix bool
}

var dialects = map[string]Dialect{
	"odbc": {
		Name: "tsql",
		CreateTable: `IF OBJECT_ID('Users', 'U') IS NULL
BEGIN
    CREATE TABLE Users (
        ID INT PRIMARY KEY IDENTITY(1,1),
        Name NVARCHAR(50),
        Age INT
    );
END;`,
		nPrefix: true,
	},
	"postgres": {
		Name: "postgres",
		CreateTable: `CREATE TABLE IF NOT EXISTS Users (
    ID SERIAL PRIMARY KEY,
    Name VARCHAR(50),
    Age INTEGER
);`,
	},
	"mysql": {
		Name: "mysql",
		CreateTable: `CREATE TABLE IF NOT EXISTS Users (
    ID INT AUTO_INCREMENT PRIMARY KEY,
    Name VARCHAR(50),
    Age INT
);`,
		backslashEscapes: true,
	},
	"sqlite": {
		Name: "sqlite",
		CreateTable: `CREATE TABLE IF NOT EXISTS Users (
    ID INTEGER PRIMARY KEY AUTOINCREMENT,
    Name VARCHAR(50),
    Age INTEGER
);`,
	},
}

func init() {
	dialects["sqlserver"] = dialects["odbc"]
	dialects["mssql"] = dialects["odbc"]
}

// ForBackend returns the dialect used with the named database/sql backend.
func ForBackend(backend string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(backend)]
	if !ok {
		return Dialect{}, fmt.Errorf("no SQL dialect for backend %q", backend)
	}
	return d, nil
}

// InsertSeed returns a single INSERT that adds every row in seed.
// Values are written as literals; the statement is executed directly.
func (d Dialect) InsertSeed(seed []core.SeedUser) (string, error) {
	if len(seed) == 0 {
		return "", ErrNoSeed
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(Table)
	sb.WriteString(" (Name, Age) VALUES\n")
	for i, u := range seed {
		if err := ValidateSeedUser(u); err != nil {
			return "", fmt.Errorf("seed row %d: %w", i+1, err)
		}
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString("    (")
		sb.WriteString(d.quote(u.Name))
		sb.WriteString(", ")
		sb.WriteString(strconv.Itoa(u.Age))
		sb.WriteString(")")
	}
	sb.WriteString(";")
	return sb.String(), nil
}

// ValidateSeedUser checks a row fits the Users columns.
func ValidateSeedUser(u core.SeedUser) error {
	if n := len([]rune(u.Name)); n > MaxNameLength {
		return fmt.Errorf("name %q is %d characters, limit is %d", u.Name, n, MaxNameLength)
	}
	if u.Age < 0 {
		return fmt.Errorf("age %d for %q is negative", u.Age, u.Name)
	}
	return nil
}

func (d Dialect) quote(s string) string {
	if d.backslashEscapes {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	lit := "'" + strings.ReplaceAll(s, "'", "''") + "'"
	if d.nPrefix {
		return "N" + lit
	}
	return lit
}
