package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/clinicagenda/agenda/libs/config"
	"github.com/clinicagenda/agenda/libs/runtime"
	"github.com/clinicagenda/agenda/services/agenda-service/migrations"
)

// Usage: agenda-migrate [up|down|force <version>]
func main() {
	_ = godotenv.Load()
	logger := runtime.NewLogger("agenda-migrate", config.String("LOG_LEVEL", "info"))

	fail := func(msg string, err error) {
		logger.Error(msg, "err", err)
		os.Exit(1)
	}

	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		fail("missing config", err)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		fail("open db", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		fail("ping db", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		fail("db driver", err)
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		fail("source driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		fail("create migrator", err)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "force":
		if len(os.Args) < 3 {
			fail("force requires a version", errors.New("missing version"))
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fail("invalid version", err)
		}
		if err := m.Force(version); err != nil {
			fail("force version", err)
		}
		logger.Info("forced migration version", "version", version)
		return
	case "down":
		err = m.Steps(-1)
	case "up":
		err = m.Up()
	default:
		fail("unknown command", errors.New(cmd))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fail("migrate "+cmd, err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		fail("read version", verr)
	}
	logger.Info("migrations complete", "command", cmd, "version", version, "dirty", dirty)
}
