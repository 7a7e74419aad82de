package main

import (
	"flag"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/twelvenexus/oneplan-billing/internal/config"
)

func main() {
	var dir string
	var command string
	flag.StringVar(&dir, "dir", "migrations", "directory with migration files")
	flag.StringVar(&command, "command", "up", "goose command: up, down, status, version")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := sqlx.Open("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set dialect: %v", err)
	}

	if err := goose.Run(command, db.DB, dir, flag.Args()...); err != nil {
		log.Fatalf("goose %s failed: %v", command, err)
	}
}
