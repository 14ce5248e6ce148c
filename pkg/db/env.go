package db

import "os"

func getenvGormLevel() string {
	return os.Getenv("DATABASE_LOG_LEVEL")
}
