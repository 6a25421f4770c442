package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/pagedigest/internal/kv"
	dynamodbkv "github.com/wolfeidau/pagedigest/internal/kv/dynamodb"
	memorykv "github.com/wolfeidau/pagedigest/internal/kv/memory"
	postgreskv "github.com/wolfeidau/pagedigest/internal/kv/postgres"
	rediskv "github.com/wolfeidau/pagedigest/internal/kv/redis"
	sqlitekv "github.com/wolfeidau/pagedigest/internal/kv/sqlite"
)

// StoreFlags selects and configures the key-value backend.
type StoreFlags struct {
	StoreType string `help:"store type" default:"memory" env:"PAGEDIGEST_STORE_TYPE" enum:"memory,postgres,sqlite,redis,dynamodb"`

	Postgres PostgresStoreFlags `embed:"" prefix:"postgres-"`
	SQLite   SQLiteStoreFlags   `embed:"" prefix:"sqlite-"`
	Redis    RedisStoreFlags    `embed:"" prefix:"redis-"`
	DynamoDB DynamoDBStoreFlags `embed:"" prefix:"dynamodb-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"1"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"PAGEDIGEST_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

type SQLiteStoreFlags struct {
	Path        string        `help:"SQLite database file" default:"data/pagedigest.db" env:"PAGEDIGEST_SQLITE_PATH"`
	BusyTimeout time.Duration `help:"how long writers wait for the database lock" default:"5s"`
}

type RedisStoreFlags struct {
	Addr      string `help:"Redis address" default:"localhost:6379" env:"REDIS_ADDR"`
	Password  string `help:"Redis password" env:"REDIS_PASSWORD"`
	DB        int    `help:"Redis database number" default:"0"`
	Namespace string `help:"prefix for every Redis key" default:"pagedigest:"`
}

type DynamoDBStoreFlags struct {
	Table       string `help:"DynamoDB table name" default:"pagedigest" env:"PAGEDIGEST_DYNAMODB_TABLE"`
	Region      string `help:"AWS region" env:"AWS_REGION"`
	Endpoint    string `help:"override the DynamoDB endpoint, e.g. a local emulator" env:"PAGEDIGEST_DYNAMODB_ENDPOINT"`
	CreateTable bool   `help:"create the table if it does not exist" default:"false"`
}

// openBackend connects to the configured backend. The caller closes it.
func (s *StoreFlags) openBackend(ctx context.Context, log zerolog.Logger) (kv.Backend, error) {
	switch s.StoreType {
	case "postgres":
		if err := s.Postgres.Validate(); err != nil {
			return nil, err
		}

		pool, err := postgreskv.NewPool(ctx, &postgreskv.PoolConfig{
			ConnString:      s.Postgres.ConnString,
			MaxConns:        s.Postgres.MaxConns,
			MinConns:        s.Postgres.MinConns,
			MaxConnLifetime: s.Postgres.MaxConnLifetime,
			MaxConnIdleTime: s.Postgres.MaxConnIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if s.Postgres.AutoMigrate {
			if err := postgreskv.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		log.Info().Msg("Using PostgreSQL store")
		return postgreskv.NewBackend(pool), nil

	case "sqlite":
		backend, err := sqlitekv.Open(ctx, sqlitekv.Config{
			Path:        s.SQLite.Path,
			BusyTimeout: s.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", s.SQLite.Path).Msg("Using SQLite store")
		return backend, nil

	case "redis":
		backend, err := rediskv.New(ctx, rediskv.Config{
			Addr:      s.Redis.Addr,
			Password:  s.Redis.Password,
			DB:        s.Redis.DB,
			Namespace: s.Redis.Namespace,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", s.Redis.Addr).Msg("Using Redis store")
		return backend, nil

	case "dynamodb":
		client, err := s.DynamoDB.client(ctx)
		if err != nil {
			return nil, err
		}
		if s.DynamoDB.CreateTable {
			if err := dynamodbkv.CreateTable(ctx, client, s.DynamoDB.Table, false); err != nil {
				return nil, fmt.Errorf("failed to create table: %w", err)
			}
		}
		log.Info().Str("table", s.DynamoDB.Table).Msg("Using DynamoDB store")
		return dynamodbkv.NewBackend(client, s.DynamoDB.Table), nil

	default:
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return memorykv.NewBackend(), nil
	}
}

func (s *DynamoDBStoreFlags) client(ctx context.Context) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
	}), nil
}
