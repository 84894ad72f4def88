package database

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// pure Go driver registered as "sqlite"
	_ "modernc.org/sqlite"

	"github.com/Jm9710/appProducotres/internal/domain"
)

type Options struct {
	MaxOpenConns int
	Debug        bool
}

// Connect picks the driver from the DSN scheme. Anything that is not a
// postgres, mysql or sqlserver URL is treated as a SQLite path or URI.
func Connect(dsn string, log zerolog.Logger, opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
	if opts.Debug {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		log.Info().Msg("connecting to PostgreSQL")
		dialector = postgres.Open(dsn)
	case strings.HasPrefix(dsn, "mysql://"):
		log.Info().Msg("connecting to MySQL")
		dialector = mysql.Open(strings.TrimPrefix(dsn, "mysql://"))
	case strings.HasPrefix(dsn, "sqlserver://"):
		log.Info().Msg("connecting to SQL Server")
		dialector = sqlserver.Open(dsn)
	default:
		log.Info().Str("dsn", dsn).Msg("using SQLite")
		dialector = gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		})
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.TipoUsuario{},
		&domain.TipoArchivo{},
		&domain.Usuario{},
		&domain.KML{},
		&domain.KMLTaipas{},
		&domain.Archivo{},
	)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
