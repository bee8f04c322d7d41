package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/CrowdShield/CS-Backend/internal/auth"
	"github.com/CrowdShield/CS-Backend/internal/config"
	"github.com/CrowdShield/CS-Backend/internal/db"
	"github.com/CrowdShield/CS-Backend/internal/logging"
	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/CrowdShield/CS-Backend/internal/seeds"
	"go.uber.org/zap"
)

// CLI flags
var (
	adminUser   = flag.String("admin-user", os.Getenv("ADMIN_USERNAME"), "Admin username to create (default: env ADMIN_USERNAME)")
	adminPass   = flag.String("admin-password", os.Getenv("ADMIN_PASSWORD"), "Admin password (default: env ADMIN_PASSWORD)")
	demoFile    = flag.String("demo", "", "YAML file of demo reports, e.g. internal/seeds/data/demo_reports.yaml")
	csvPath     = flag.String("csv", "", "Import reports from a CSV export instead of seeding")
	dryRun      = flag.Bool("dry-run", false, "CSV: parse + validate only; no DB writes")
	replace     = flag.Bool("replace", false, "CSV: delete every existing report first")
	confirm     = flag.Bool("confirm", false, "CSV: required together with --replace")
	advisoryKey = flag.Int64("advisory-lock", 0, "CSV: optional Postgres advisory lock key (e.g., 424242). 0 = disabled")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}
	if _, err := logging.Init(cfg.Log.Level, true); err != nil {
		fatalf("logging: %v", err)
	}

	if *csvPath != "" {
		importCSV(cfg.DatabaseURL)
		return
	}

	if err := db.Connect(cfg.DatabaseURL); err != nil {
		fatalf("database: %v", err)
	}
	defer db.Close()

	reports.Init()
	auth.Init()

	err = seeds.SeedAll(seeds.Options{
		AdminUsername: *adminUser,
		AdminPassword: *adminPass,
		DemoFile:      *demoFile,
	})
	if err != nil {
		zap.L().Fatal("Seeding failed", zap.Error(err))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
