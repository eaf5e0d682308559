package analyticsexporter

import (
	"os"
)

type Config struct {
	Disabled bool

	InfluxDBURL    string
	InfluxDBToken  string
	InfluxDBOrg    string
	InfluxDBBucket string

	BigQueryProjectID  string
	BigQueryDataset    string
	BigQueryEventTable string
	BigQuerySessions   string
}

func LoadConfig() *Config {
	cfg := &Config{
		Disabled: os.Getenv("ANALYTICS_EXPORT_DISABLED") == "true",

		InfluxDBURL:    getEnvOrDefault("INFLUXDB_URL", "http://localhost:8086"),
		InfluxDBToken:  os.Getenv("INFLUXDB_TOKEN"),
		InfluxDBOrg:    os.Getenv("INFLUXDB_ORG"),
		InfluxDBBucket: getEnvOrDefault("INFLUXDB_BUCKET", "notification_events"),

		BigQueryProjectID:  getEnvOrDefault("BIGQUERY_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT")),
		BigQueryDataset:    getEnvOrDefault("BIGQUERY_DATASET", "notification_analytics"),
		BigQueryEventTable: getEnvOrDefault("BIGQUERY_EVENT_TABLE", "events"),
		BigQuerySessions:   getEnvOrDefault("BIGQUERY_SESSION_TABLE", "sessions"),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
