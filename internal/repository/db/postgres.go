package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"procurement/internal/config"
	"procurement/internal/logging"
)

func NewPostgresDB(cfg *config.PostgresConfig) (*sqlx.DB, error) {
	logging.GetLogger().Debug("Connecting postgres db")
	db, err := sqlx.Open("postgres", cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("db.NewPostgresDB: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("db.NewPostgresDB: %w", err)
	}

	return db, nil
}
