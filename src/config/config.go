package config

import (
	"fmt"
	"os"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetDSN assembles the postgres connection string from the environment.
// Host, port and sslmode fall back to local defaults so dev setups only
// need credentials and a database name.
func GetDSN() string {
	host := envOr("DATABASE_HOST", "localhost")
	port := envOr("DATABASE_PORT", "5432")
	sslmode := envOr("DATABASE_SSLMODE", "disable")
	timezone := envOr("DATABASE_TIMEZONE", "UTC")
	user := os.Getenv("DATABASE_USER")
	password := os.Getenv("DATABASE_PASSWORD")
	name := os.Getenv("DATABASE_NAME")
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", host, user, password, name, port, sslmode, timezone)
}

// TRANSACTION_UPDATES_QUEUE is the fanout channel for transaction status
// changes. The same name serves as the SQS queue and the Kafka topic.
const TRANSACTION_UPDATES_QUEUE = "PaymentTransactionUpdates"
