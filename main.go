// @title CBSE Prep Backend API
// @version 1.0
// @description Exam practice and evaluation workflow backend for CBSE class 10 and 12 students.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"cbseprep_backend/internal/app"
	"cbseprep_backend/internal/config"
	"cbseprep_backend/pkg/database"
	"flag"
	"log"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run database migration and exit")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *migrateOnly {
		db, err := database.InitDB(&cfg.Database)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		log.Println("Migration finished")
		return
	}

	application := app.NewApp(cfg)
	application.Run()
}
