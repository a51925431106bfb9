// Command migrate applies or inspects the embedded schema migrations
// against the configured database.
//
//	migrate [up|down|status|version]
package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"

	"github.com/iliyamo/seat-reservation-admin/internal/config"
	"github.com/iliyamo/seat-reservation-admin/internal/database"
)

func main() {
	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}
	db, err := database.Open(cfg.DB)
	if err != nil {
		stdlog.Fatalf("db: %v", err)
	}
	defer db.Close()

	provider, err := database.NewMigrator(db, cfg.DB.Driver)
	if err != nil {
		stdlog.Fatalf("migrator: %v", err)
	}
	ctx := context.Background()

	switch cmd {
	case "up":
		results, err := provider.Up(ctx)
		for _, r := range results {
			fmt.Println(r)
		}
		if err != nil {
			stdlog.Fatalf("up: %v", err)
		}
	case "down":
		r, err := provider.Down(ctx)
		if err != nil {
			stdlog.Fatalf("down: %v", err)
		}
		fmt.Println(r)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			stdlog.Fatalf("status: %v", err)
		}
		for _, s := range statuses {
			fmt.Printf("%-8s %5d %s\n", s.State, s.Source.Version, s.Source.Path)
		}
	case "version":
		v, err := provider.GetDBVersion(ctx)
		if err != nil {
			stdlog.Fatalf("version: %v", err)
		}
		fmt.Println(v)
	default:
		stdlog.Fatalf("unknown command %q (want up, down, status or version)", cmd)
	}
}
