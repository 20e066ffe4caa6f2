// Command dbinspect prints the marketplace schema as the database sees it and
// can drop it for a clean local start.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"skillswap/internal/config"
	"skillswap/internal/database"

	"gorm.io/gorm"
)

func main() {
	constraints := flag.Bool("constraints", false, "list postgres constraints for the public schema")
	reset := flag.Bool("reset", false, "drop every marketplace table (refused in production)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = database.Close() }()

	if *reset {
		if cfg.IsProduction() {
			log.Fatal("refusing to reset a production database")
		}
		if err := dropAll(db); err != nil {
			log.Fatalf("reset failed: %v", err)
		}
		fmt.Println("Marketplace tables dropped.")
		return
	}

	printTables(db)

	status, err := database.GetSchemaStatus(context.Background(), db, cfg)
	if err == nil {
		fmt.Printf("Schema mode: %s, applied %v, pending %d\n", status.Mode, status.AppliedVersions, len(status.PendingMigrations))
	}

	if *constraints {
		if cfg.DBDriver == "sqlite" {
			fmt.Fprintln(os.Stderr, "constraint listing needs DB_DRIVER=postgres")
			os.Exit(1)
		}
		printConstraints(db)
	}
}

func printTables(db *gorm.DB) {
	m := db.Migrator()
	for _, model := range database.PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			log.Printf("parse %T: %v", model, err)
			continue
		}
		table := stmt.Schema.Table

		if !m.HasTable(model) {
			fmt.Printf("%s: missing\n", table)
			continue
		}

		var rows int64
		db.Model(model).Count(&rows)
		fmt.Printf("%s (%d rows)\n", table, rows)

		columns, err := m.ColumnTypes(model)
		if err != nil {
			log.Printf("columns %s: %v", table, err)
			continue
		}
		for _, c := range columns {
			fmt.Printf(" - %s: %s\n", c.Name(), c.DatabaseTypeName())
		}
	}
}

func printConstraints(db *gorm.DB) {
	var result []struct {
		Relname string `gorm:"column:relname"`
		Conname string `gorm:"column:conname"`
		Def     string `gorm:"column:def"`
	}
	db.Raw(`SELECT r.relname, c.conname, pg_get_constraintdef(c.oid) AS def
		FROM pg_constraint c
		JOIN pg_class r ON c.conrelid = r.oid
		JOIN pg_namespace n ON n.oid = r.relnamespace
		WHERE n.nspname = 'public'
		ORDER BY r.relname, c.conname`).Scan(&result)

	fmt.Println("Constraints (public schema):")
	for _, r := range result {
		fmt.Printf(" - %s on %s: %s\n", r.Conname, r.Relname, r.Def)
	}
}

func dropAll(db *gorm.DB) error {
	models := database.PersistentModels()
	// Reverse registration order so dependents go first.
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			return err
		}
	}
	return db.Migrator().DropTable(&database.MigrationLog{})
}
