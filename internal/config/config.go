package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dbseed/internal/core"
	"dbseed/internal/schema"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AuthTrusted = "trusted"
	AuthSQL     = "sql"
)

// Backends lists the database/sql drivers a run can go through.
var Backends = []string{"odbc", "sqlserver", "postgres", "mysql", "sqlite"}

// DefaultSeed is inserted when no seed file or inline seed is configured.
var DefaultSeed = []core.SeedUser{
	{Name: "Alice", Age: 30},
	{Name: "Bob", Age: 25},
	{Name: "Charlie", Age: 35},
}

type Config struct {
	Backend    string
	ODBCDriver string
	Server     string
	Database   string
	AuthMode   string
	User       string
	Password   string
	// PasswordEnc is the sealed password; it needs Key to open.
	PasswordEnc string
	Key         string
	SSLMode     string
	DSN         string

	Completion     core.Completion
	ConnectTimeout time.Duration
	Locale         string

	Seed     []core.SeedUser
	SeedFile string

	JournalPath string
	LogDir      string
	LogLevel    string
	LogFormat   string
}

// Load reads .env (if present) and the DBSEED_* environment variables.
func Load() (*Config, error) {
	// Try loading .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Backend:     strings.ToLower(getEnv("DBSEED_BACKEND", "odbc")),
		ODBCDriver:  getEnv("DBSEED_ODBC_DRIVER", "ODBC Driver 17 for SQL Server"),
		Server:      getEnv("DBSEED_SERVER", `(localdb)\MSSQLLocalDB`),
		Database:    getEnv("DBSEED_DATABASE", "TestDB"),
		AuthMode:    strings.ToLower(getEnv("DBSEED_AUTH", AuthTrusted)),
		User:        os.Getenv("DBSEED_USER"),
		Password:    os.Getenv("DBSEED_PASSWORD"),
		PasswordEnc: os.Getenv("DBSEED_PASSWORD_ENC"),
		Key:         os.Getenv("DBSEED_KEY"),
		SSLMode:     getEnv("DBSEED_SSLMODE", "disable"),
		DSN:         os.Getenv("DBSEED_DSN"),
		Locale:      getEnv("DBSEED_LOCALE", "utf-8"),
		SeedFile:    os.Getenv("DBSEED_SEED_FILE"),
		JournalPath: getEnv("DBSEED_JOURNAL", "dbseed.db"),
		LogDir:      getEnv("DBSEED_LOG_DIR", "logs"),
		LogLevel:    getEnv("DBSEED_LOG_LEVEL", "info"),
		LogFormat:   getEnv("DBSEED_LOG_FORMAT", "text"),
	}

	completion, err := core.ParseCompletion(getEnv("DBSEED_COMPLETION", core.CompletionComplete.String()))
	if err != nil {
		return nil, err
	}
	cfg.Completion = completion

	cfg.ConnectTimeout = 30 * time.Second
	if s := os.Getenv("DBSEED_CONNECT_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("DBSEED_CONNECT_TIMEOUT: %w", err)
		}
		cfg.ConnectTimeout = d
	}

	switch {
	case cfg.SeedFile != "":
		seed, err := LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		cfg.Seed = seed
	case os.Getenv("DBSEED_SEED") != "":
		seed, err := ParseSeed(os.Getenv("DBSEED_SEED"))
		if err != nil {
			return nil, fmt.Errorf("DBSEED_SEED: %w", err)
		}
		cfg.Seed = seed
	default:
		cfg.Seed = append([]core.SeedUser(nil), DefaultSeed...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	known := false
	for _, b := range Backends {
		if b == c.Backend {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown backend %q, expected one of %s", c.Backend, strings.Join(Backends, ", "))
	}

	switch c.AuthMode {
	case AuthTrusted:
	case AuthSQL:
		if c.User == "" && c.DSN == "" {
			return errors.New("sql authentication needs DBSEED_USER")
		}
	default:
		return fmt.Errorf("unknown auth mode %q, expected %q or %q", c.AuthMode, AuthTrusted, AuthSQL)
	}

	if c.Database == "" && c.DSN == "" {
		return errors.New("DBSEED_DATABASE is empty")
	}

	for i, u := range c.Seed {
		if err := schema.ValidateSeedUser(u); err != nil {
			return fmt.Errorf("seed row %d: %w", i+1, err)
		}
	}
	return nil
}

// NeedsPassword reports whether sql authentication is configured without a password.
func (c *Config) NeedsPassword() bool {
	return c.AuthMode == AuthSQL && c.DSN == "" && c.Password == "" && c.PasswordEnc == ""
}

// ConnectionString builds the connection string for the configured backend.
// DBSEED_DSN, when set, is returned unchanged.
func (c *Config) ConnectionString() string {
	return c.connectionString(false)
}

// Redacted returns the connection string with the password masked, for logs.
func (c *Config) Redacted() string {
	return c.connectionString(true)
}

// redactedPassword matches the url.URL.Redacted mask.
const redactedPassword = "xxxxx"

var dsnPassword = regexp.MustCompile(`(?i)\b(pwd|password)\s*=\s*("[^"]*"|\{[^}]*\}|[^;]*)`)

func (c *Config) connectionString(redact bool) string {
	password := c.Password
	if redact && password != "" {
		password = redactedPassword
	}

	if c.DSN != "" {
		if !redact {
			return c.DSN
		}
		if u, err := url.Parse(c.DSN); err == nil && u.Scheme != "" && u.User != nil {
			return u.Redacted()
		}
		return dsnPassword.ReplaceAllString(c.DSN, "${1}="+redactedPassword)
	}

	switch c.Backend {
	case "odbc":
		var sb strings.Builder
		fmt.Fprintf(&sb, "DRIVER={%s};SERVER=%s;DATABASE=%s;",
			strings.ReplaceAll(c.ODBCDriver, "}", "}}"), odbcValue(c.Server), odbcValue(c.Database))
		if c.AuthMode == AuthTrusted {
			sb.WriteString("Trusted_Connection=yes;")
		} else {
			fmt.Fprintf(&sb, "UID=%s;PWD=%s;", odbcValue(c.User), odbcValue(password))
		}
		return sb.String()

	case "sqlserver":
		var sb strings.Builder
		fmt.Fprintf(&sb, "server=%s;database=%s;", adoValue(c.Server), adoValue(c.Database))
		if c.AuthMode == AuthSQL {
			fmt.Fprintf(&sb, "user id=%s;password=%s;", adoValue(c.User), adoValue(password))
		}
		return sb.String()

	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			Host:     c.Server,
			Path:     "/" + c.Database,
			RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
		}
		if c.AuthMode == AuthSQL {
			u.User = url.UserPassword(c.User, c.Password)
		}
		if redact {
			return u.Redacted()
		}
		return u.String()

	case "mysql":
		my := mysql.NewConfig()
		my.Net = "tcp"
		my.Addr = c.Server
		my.DBName = c.Database
		if c.AuthMode == AuthSQL {
			my.User = c.User
			my.Passwd = password
		}
		return my.FormatDSN()

	case "sqlite":
		return c.Database
	}
	return ""
}

// odbcValue wraps attribute values containing ; or { in braces.
func odbcValue(v string) string {
	if strings.ContainsAny(v, ";{}") || strings.TrimSpace(v) != v {
		return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
	}
	return v
}

// adoValue quotes ADO-style values containing ; or quotes.
func adoValue(v string) string {
	if strings.ContainsAny(v, `;"'`) || strings.TrimSpace(v) != v {
		return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return v
}

// ParseSeed reads "Name:Age,Name:Age".
func ParseSeed(s string) ([]core.SeedUser, error) {
	var seed []core.SeedUser
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i := strings.LastIndex(part, ":")
		if i <= 0 {
			return nil, fmt.Errorf("seed entry %q must be Name:Age", part)
		}
		age, err := strconv.Atoi(strings.TrimSpace(part[i+1:]))
		if err != nil {
			return nil, fmt.Errorf("seed entry %q: %w", part, err)
		}
		seed = append(seed, core.SeedUser{Name: strings.TrimSpace(part[:i]), Age: age})
	}
	return seed, nil
}

type seedFile struct {
	Users []core.SeedUser `yaml:"users"`
}

// LoadSeedFile reads seed rows from a YAML file with a top-level users list.
func LoadSeedFile(path string) ([]core.SeedUser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var sf seedFile
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&sf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return sf.Users, nil
}
