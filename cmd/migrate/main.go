// Command migrate manages the marketplace schema outside of server startup.
//
//	migrate up              apply pending SQL migrations
//	migrate auto            run GORM AutoMigrate over the marketplace models
//	migrate status          print the schema plan and pending migrations
//	migrate down <version>  revert one applied migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"skillswap/internal/config"
	"skillswap/internal/database"
)

var errUsage = errors.New("usage: migrate <up|auto|status|down <version>>")

func main() {
	flag.Parse()
	if err := run(context.Background(), flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close() }()

	all, err := database.Migrations()
	if err != nil {
		return err
	}
	migrator := database.NewMigrator(db, all)

	switch args[0] {
	case "up":
		n, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		log.Printf("applied %d migration(s)", n)

	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Println("automigrate finished")

	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return err
		}
		log.Printf("mode=%s env=%s run_sql=%t run_auto=%t applied=%v",
			status.Mode, status.Environment, status.RunSQL, status.RunAuto, status.AppliedVersions)
		for _, m := range status.PendingMigrations {
			log.Printf("pending: %s", m)
		}

	case "down":
		if len(args) < 2 {
			return errUsage
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := migrator.Down(ctx, version); err != nil {
			return err
		}
		log.Printf("rolled back migration %06d", version)

	default:
		return errUsage
	}
	return nil
}
