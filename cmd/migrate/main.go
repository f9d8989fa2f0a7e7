package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"chatsync/internal/migrations"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := flag.String("db", "./chatsync.db", "Path to the database file")
	flag.Parse()

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	fmt.Println("Applying schema...")
	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	fmt.Println("Database schema is up to date.")
}
