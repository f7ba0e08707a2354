// Command migrate applies or rolls back the schema in migrations/.
//
//	migrate up        apply every pending migration
//	migrate down      roll back one migration
//	migrate version   print the current version
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/iliyamo/football-squares/internal/config"
	"github.com/iliyamo/football-squares/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	// golang-migrate's mysql driver needs multiStatements for files with
	// more than one statement.
	dsn := database.ConfigDSN(cfg) + "&multiStatements=true"
	m, err := migrate.New("file://"+cfg.MigrationsDir, "mysql://"+dsn)
	if err != nil {
		log.Fatalf("migrate init: %v", err)
	}
	defer m.Close()

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Fatalf("migrate version: %v", verr)
		}
		fmt.Printf("version=%d dirty=%v\n", v, dirty)
		return
	default:
		log.Fatalf("unknown command %q (want up, down or version)", cmd)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate %s: %v", cmd, err)
	}
	log.Printf("migrate %s: ok", cmd)
}
