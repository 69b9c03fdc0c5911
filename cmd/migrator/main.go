package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

const (
	migrationUp   = "up"
	migrationDown = "down"
)

func main() {
	var migrationsPath, migrationType string
	flag.StringVar(&migrationType, "migration-type", migrationUp, "up or down")
	flag.StringVar(&migrationsPath, "migrations-path", "migrations", "path to migration files")
	flag.Parse()

	_ = godotenv.Load()

	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		databaseURL(),
	)
	if err != nil {
		panic(err)
	}

	if migrationType == migrationDown {
		run(m.Down, "downed")
		return
	}
	run(m.Up, "applied")
}

func run(step func() error, verb string) {
	if err := step(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}
	fmt.Printf("migrations %s successfully\n", verb)
}

// databaseURL builds the migrate DSN from the same DB_* variables the server
// reads, so one .env drives both binaries.
func databaseURL() string {
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASS")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")
	if user == "" || host == "" || port == "" || name == "" {
		panic("DB_USER, DB_HOST, DB_PORT and DB_NAME are required")
	}
	auth := url.QueryEscape(user)
	if pass != "" {
		auth += ":" + url.QueryEscape(pass)
	}
	return fmt.Sprintf("mysql://%s@tcp(%s:%s)/%s", auth, host, port, name)
}
