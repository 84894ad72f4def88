package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Jm9710/appProducotres/internal/config"
	"github.com/Jm9710/appProducotres/internal/database"
	"github.com/Jm9710/appProducotres/internal/domain"
	"github.com/Jm9710/appProducotres/internal/domain/account"
	"github.com/Jm9710/appProducotres/internal/pkg/logger"
)

var fileTypes = []string{
	"Analisis de suelo",
	"Informe",
	"Mapa de rendimiento",
	"Prescripcion",
	"Puntos de muestreo",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.DatabaseURL, log, database.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer func() { _ = database.Close(db) }()

	log.Info().Msg("running AutoMigrate")
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("AutoMigrate failed")
	}

	roles, err := seedLookups(db)
	if err != nil {
		log.Fatal().Err(err).Msg("seed lookup tables failed")
	}
	log.Info().Int("user_types", len(roles)).Int("file_types", len(fileTypes)).Msg("lookup tables ready")

	username := getEnv("SEED_ADMIN_USER", "admin")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		if cfg.IsProdLike() {
			log.Fatal().Msg("SEED_ADMIN_PASSWORD is required in prod/release")
		}
		password = "admin123"
	}

	if err := seedAdmin(db, log, username, password, roles[domain.RoleAdmin]); err != nil {
		log.Fatal().Err(err).Msg("seed admin failed")
	}
}

// seedLookups creates the role and file types that are missing. Rows are
// matched by name so the seed can run repeatedly.
func seedLookups(db *gorm.DB) (map[string]int64, error) {
	roles := map[string]int64{}
	for _, name := range []string{domain.RoleAdmin, domain.RoleProductor} {
		t := domain.TipoUsuario{Tipo: name}
		if err := db.Where("tipo = ?", name).FirstOrCreate(&t).Error; err != nil {
			return nil, err
		}
		roles[name] = t.IDTipo
	}

	for _, name := range fileTypes {
		t := domain.TipoArchivo{Tipo: name}
		if err := db.Where("tipo = ?", name).FirstOrCreate(&t).Error; err != nil {
			return nil, err
		}
	}
	return roles, nil
}

// seedAdmin creates the admin account unless the username is taken.
func seedAdmin(db *gorm.DB, log zerolog.Logger, username, password string, roleID int64) error {
	var existing domain.Usuario
	err := db.Where("nom_us = ?", username).First(&existing).Error
	switch {
	case err == nil:
		log.Info().Str("nom_us", username).Msg("admin already exists, left untouched")
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	hash, err := account.HashPassword(password)
	if err != nil {
		return err
	}
	admin := domain.Usuario{
		NomUs:  username,
		PassUs: hash,
		Nombre: "Administrador",
		TipoUs: roleID,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Info().Str("nom_us", username).Int64("id_usuario", admin.IDUsuario).Msg("admin created")
	return nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
