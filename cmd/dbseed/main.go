package main

import (
	"context"
	"dbseed/internal/config"
	"dbseed/internal/core"
	"dbseed/internal/data"
	"dbseed/internal/logger"
	"dbseed/internal/schema"
	"dbseed/internal/service"
	"dbseed/internal/widestr"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	// ODBC driver and its diagnostic records
	_ "dbseed/internal/data/odbc"
)

const exitFailure = -1

func main() {
	// Check for CLI subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			os.Exit(runSeed())
		case "check-conn":
			os.Exit(checkConn())
		case "print-sql":
			os.Exit(printSQL(os.Args[2:]))
		case "history":
			os.Exit(history(os.Args[2:]))
		case "encrypt-password":
			os.Exit(encryptPassword())
		case "help", "--help", "-h":
			printHelp()
			return
		default:
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			printHelp()
			os.Exit(exitFailure)
		}
	}

	// No subcommand: seed
	os.Exit(runSeed())
}

func printHelp() {
	fmt.Println("dbseed - create the Users table and insert seed rows")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dbseed [run]                     Connect, create Users if absent, insert seed rows")
	fmt.Println("  dbseed check-conn                Connect and disconnect only")
	fmt.Println("  dbseed print-sql [-backend B]    Print the statements a run would execute")
	fmt.Println("  dbseed history [-n N]            Show recent runs from the journal")
	fmt.Println("  dbseed encrypt-password          Store an encrypted password in .env (interactive)")
	fmt.Println("  dbseed help                      Show this help")
	fmt.Println()
	fmt.Println("Settings come from .env and DBSEED_* environment variables.")
}

// setup loads config and starts the logger. Failures are printed directly,
// since the logger may not exist yet.
func setup() (*config.Config, bool) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\nCheck .env file or DBSEED_* environment variables.\n", err)
		return nil, false
	}
	if err := logger.Init(cfg.LogDir, cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		return nil, false
	}
	return cfg, true
}

func newSession(cfg *config.Config, runs core.RunRepository) (*service.Session, error) {
	if err := resolvePassword(cfg); err != nil {
		return nil, err
	}

	conv, err := widestr.NewConverter(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("DBSEED_LOCALE: %w", err)
	}
	dialect, err := schema.ForBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"backend":    cfg.Backend,
		"completion": cfg.Completion.String(),
	}).Debugf("Connection string: %s", cfg.Redacted())

	driver := data.NewSQLDriver(cfg.Backend, cfg.ConnectTimeout)
	return service.NewSession(driver, conv, runs, service.SessionOptions{
		Backend:          cfg.Backend,
		Server:           cfg.Server,
		Database:         cfg.Database,
		ConnectionString: cfg.ConnectionString(),
		Completion:       cfg.Completion,
		Dialect:          dialect,
		Seed:             cfg.Seed,
	}), nil
}

// resolvePassword opens DBSEED_PASSWORD_ENC, or prompts when sql
// authentication has no password and stdin is a terminal.
func resolvePassword(cfg *config.Config) error {
	if cfg.Password == "" && cfg.PasswordEnc != "" {
		box, err := service.NewSecretBox(cfg.Key)
		if err != nil {
			return fmt.Errorf("DBSEED_KEY: %w", err)
		}
		password, err := box.Open(cfg.PasswordEnc)
		if err != nil {
			return fmt.Errorf("decrypting DBSEED_PASSWORD_ENC: %w", err)
		}
		cfg.Password = password
		return nil
	}

	if cfg.NeedsPassword() && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Printf("Password for %s: ", cfg.User)
		passBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // newline after hidden input
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		cfg.Password = string(passBytes)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSeed() int {
	cfg, ok := setup()
	if !ok {
		return exitFailure
	}

	var runs core.RunRepository
	if !strings.EqualFold(cfg.JournalPath, "off") {
		db, err := data.OpenJournal(cfg.JournalPath)
		if err != nil {
			// a broken journal never blocks seeding
			logger.Log.Warnf("Run journal disabled: %v", err)
		} else {
			defer db.Close()
			runs = data.NewRunRepo(db)
		}
	}

	session, err := newSession(cfg, runs)
	if err != nil {
		logger.Log.Error(err)
		return exitFailure
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := session.Run(ctx); err != nil {
		logger.Log.Error(err)
		return exitFailure
	}
	return 0
}

func checkConn() int {
	cfg, ok := setup()
	if !ok {
		return exitFailure
	}

	session, err := newSession(cfg, nil)
	if err != nil {
		logger.Log.Error(err)
		return exitFailure
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := session.Check(ctx); err != nil {
		logger.Log.Error(err)
		return exitFailure
	}
	return 0
}

func printSQL(args []string) int {
	fs := flag.NewFlagSet("print-sql", flag.ContinueOnError)
	backend := fs.String("backend", "", "Dialect to print (default DBSEED_BACKEND)")
	if err := fs.Parse(args); err != nil {
		return parseFailure(err)
	}

	cfg, ok := setup()
	if !ok {
		return exitFailure
	}
	if *backend == "" {
		*backend = cfg.Backend
	}

	dialect, err := schema.ForBackend(*backend)
	if err != nil {
		logger.Log.Error(err)
		return exitFailure
	}

	fmt.Println(dialect.CreateTable)
	fmt.Println()
	if len(cfg.Seed) == 0 {
		fmt.Println("-- no seed rows configured")
		return 0
	}
	insert, err := dialect.InsertSeed(cfg.Seed)
	if err != nil {
		logger.Log.Error(err)
		return exitFailure
	}
	fmt.Println(insert)
	return 0
}

// parseFailure maps a flag error to an exit code; the flag package has
// already printed the problem and usage.
func parseFailure(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return exitFailure
}

func history(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("n", 20, "Number of runs to show")
	if err := fs.Parse(args); err != nil {
		return parseFailure(err)
	}

	cfg, ok := setup()
	if !ok {
		return exitFailure
	}
	if strings.EqualFold(cfg.JournalPath, "off") {
		fmt.Println("Run journal is disabled (DBSEED_JOURNAL=off).")
		return 0
	}

	db, err := data.OpenJournal(cfg.JournalPath)
	if err != nil {
		logger.Log.Errorf("Failed to open run journal: %v", err)
		return exitFailure
	}
	defer db.Close()

	recent, err := data.NewRunRepo(db).GetRecent(*limit)
	if err != nil {
		logger.Log.Errorf("Failed to read run journal: %v", err)
		return exitFailure
	}
	if len(recent) == 0 {
		fmt.Println("No runs recorded.")
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tBACKEND\tDATABASE\tSTATUS\tROWS\tMS\tDETAIL")
	for _, r := range recent {
		detail := ""
		if r.Status == core.StatusError {
			detail = fmt.Sprintf("%s [%s] %s", r.Step, r.State, r.ErrorMessage)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Backend, r.Database,
			r.Status, r.RowsSeeded, r.DurationMs, detail)
	}
	w.Flush()
	return 0
}

func encryptPassword() int {
	// Config validation is skipped here: the point may be to fix it.
	if err := logger.Init("", "info", "text"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		return exitFailure
	}

	fmt.Print("Database password: ")
	passBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Printf("Failed to read password: %v\n", err)
		return exitFailure
	}

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Printf("Failed to read password: %v\n", err)
		return exitFailure
	}

	password := string(passBytes)
	if password != string(confirmBytes) {
		fmt.Println("Passwords do not match.")
		return exitFailure
	}
	if password == "" {
		fmt.Println("Password cannot be empty.")
		return exitFailure
	}

	values := map[string]string{}
	key := os.Getenv("DBSEED_KEY")
	if key == "" {
		if env, err := readDotEnv(); err == nil {
			key = env["DBSEED_KEY"]
		}
	}
	if key == "" {
		key, err = config.GenerateKey()
		if err != nil {
			logger.Log.Errorf("Failed to generate key: %v", err)
			return exitFailure
		}
		values["DBSEED_KEY"] = key
		logger.Log.Info("Generated a new DBSEED_KEY.")
	}

	box, err := service.NewSecretBox(key)
	if err != nil {
		logger.Log.Errorf("DBSEED_KEY: %v", err)
		return exitFailure
	}
	sealed, err := box.Seal(password)
	if err != nil {
		logger.Log.Errorf("Failed to encrypt password: %v", err)
		return exitFailure
	}
	values["DBSEED_PASSWORD_ENC"] = sealed

	if err := config.SaveEnvValues(".env", values); err != nil {
		logger.Log.Errorf("Failed to save .env: %v", err)
		return exitFailure
	}
	fmt.Println("Encrypted password saved to .env as DBSEED_PASSWORD_ENC.")
	return 0
}

func readDotEnv() (map[string]string, error) {
	env, err := config.ReadEnvFile(".env")
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	return env, err
}
