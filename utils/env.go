package utils

import "os"

var (
	CRDB_DSN = os.Getenv("CRDB_DSN")

	REDIS_ADDR     = GetEnvOrDefault("REDIS_ADDR", "localhost:6379")
	REDIS_PASSWORD = os.Getenv("REDIS_PASSWORD")

	AWS_DEFAULT_REGION = GetEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1")

	S3_BUCKET_NAME = os.Getenv("S3_BUCKET_NAME")
	S3_ENDPOINT    = os.Getenv("S3_ENDPOINT")

	// CONFIG_PATH points at the compaction YAML config, empty means defaults
	CONFIG_PATH = os.Getenv("CONFIG_PATH")
)
