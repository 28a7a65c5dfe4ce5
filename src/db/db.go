package db

import (
	"lms/src/config"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func poolSize(env string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(env)); err == nil && v > 0 {
		return v
	}
	return fallback
}

// GetDb returns the shared connection, opening it on first use. Tests swap
// the connection in through NewDB instead.
func GetDb() *gorm.DB {
	if db != nil {
		return db
	}
	_db, err := gorm.Open(postgres.Open(config.GetDSN()))
	if err != nil {
		log.Printf("Error connecting to database: %s\n", err.Error())
		panic(err)
	}
	sqlDB, err := _db.DB()
	if err != nil {
		log.Fatalf("Error establishing connection to database: %s\n", err.Error())
	}
	sqlDB.SetMaxIdleConns(poolSize("DATABASE_MAX_IDLE_CONNS", 10))
	sqlDB.SetMaxOpenConns(poolSize("DATABASE_MAX_OPEN_CONNS", 100))
	sqlDB.SetConnMaxLifetime(time.Hour)

	db = _db
	return _db
}

func NewDB(newdb *gorm.DB) {
	db = newdb
}
