// Command migrate applies or rolls back the embedded schema migrations.
//
//	migrate up          apply every pending migration
//	migrate down [n]    roll back n steps (default 1)
//	migrate version     print the current schema version
package main

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/config"
	"github.com/iliyamo/trainer-booking/internal/database"
	"github.com/iliyamo/trainer-booking/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, "multiStatements=true")
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	switch cmd {
	case "up":
		err = database.MigrateUp(db)
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			if steps, err = strconv.Atoi(os.Args[2]); err != nil || steps <= 0 {
				log.Fatal("down expects a positive step count", zap.String("arg", os.Args[2]))
			}
		}
		err = database.MigrateDown(db, steps)
	case "version":
		v, dirty, verr := database.Version(db)
		if verr != nil {
			log.Fatal("read version", zap.Error(verr))
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return
	default:
		log.Fatal("unknown command", zap.String("cmd", cmd))
	}
	if err != nil {
		log.Fatal("migration failed", zap.String("cmd", cmd), zap.Error(err))
	}
	v, dirty, _ := database.Version(db)
	log.Info("migration done", zap.String("cmd", cmd), zap.Uint("version", v), zap.Bool("dirty", dirty))
}
