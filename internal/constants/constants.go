package constants

import "time"

const ServiceName = "ingestion-service"

const (
	DefaultTopic   = "population_data"
	DefaultGroupID = "population-ingestion"
)

const (
	DefaultConnectAttempts   = 10
	DefaultConnectRetryDelay = 5 * time.Second
	DefaultReconnectBackoff  = 5 * time.Second
	DefaultMaxReconnect      = time.Minute
	DefaultCommitInterval    = time.Second
	DefaultKafkaDialTimeout  = 10 * time.Second
	DefaultKafkaMinBytes     = 1
	DefaultKafkaMaxBytes     = 10e6
)

const (
	DefaultReferencePath = "hdfs_data/all_data_joined.csv"
	DefaultReferenceTTL  = 30 * time.Second
)

const (
	JoinKeyColumn    = "aggregate_income_Id"
	IdentifierColumn = "Id"
)

const (
	DefaultStorePath  = "base_de_donnees.db"
	DefaultStoreTable = "donnees_formatées"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	MissingReferenceSkip  = "skip"
	MissingReferenceError = "error"
)

const (
	DedupModeNone  = "none"
	DedupModeRedis = "redis"

	DedupOnErrorAllow = "allow"
	DedupOnErrorFail  = "fail"

	CacheKeyPrefixDedup = "dedup:"
	DefaultDedupTTL     = 24 * time.Hour
)

const (
	DefaultMetricsPort = 8000
	ShutdownTimeout    = 5 * time.Second
	HealthCheckTimeout = 5 * time.Second
)

const (
	DefaultErrorLogInterval = time.Second
	DefaultErrorLogBurst    = 20
)
