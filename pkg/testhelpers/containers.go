// Package testhelpers provides containers and fixtures for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// PostgresImage backs the sales datasource used by integration tests.
	PostgresImage = "postgres:16-alpine"
	// RedisImage backs the redis cache backend tests.
	RedisImage = "redis:7-alpine"

	testDatabase = "vendas"
	testUser     = "ekaya"
	testPassword = "test_password"
)

// SalesSchema creates and seeds the tables the analyst resolves by name.
// The fixed Z900 rows predate any lookback window; A100, B200 and C300 get
// one row per day for the last 400 days, with C300 dropping to zero for
// the final 10 days.
const SalesSchema = `
CREATE TABLE clientes (
    cod_cliente integer PRIMARY KEY,
    nome        varchar(80) NOT NULL,
    ativo       boolean NOT NULL
);

CREATE TABLE estoque (
    "SKU"           varchar(20) NOT NULL,
    cod_cliente     integer NOT NULL,
    es_totalestoque numeric(12,2) NOT NULL
);

CREATE TABLE faturamento (
    "SKU"            varchar(20) NOT NULL,
    data             date NOT NULL,
    cod_cliente      integer NOT NULL,
    giro_sku_cliente numeric(12,2) NOT NULL
);

INSERT INTO clientes VALUES
    (1, 'Loja Centro', true),
    (2, 'Mercado Sul', true),
    (3, 'Atacado Norte', false);

INSERT INTO estoque VALUES
    ('A100', 1, 120),
    ('B200', 1, 80),
    ('C300', 2, 0),
    ('A100', 2, 50);

INSERT INTO faturamento VALUES
    ('Z900', '2023-01-15', 1, 10),
    ('Z900', '2023-02-10', 1, 25),
    ('Z900', '2023-02-20', 2, 5),
    ('Z900', '2024-03-01', 2, 12);

INSERT INTO faturamento ("SKU", data, cod_cliente, giro_sku_cliente)
SELECT 'A100', d::date, 1, 20 + (extract(dow FROM d)::int)
FROM generate_series(current_date - 400, current_date - 1, interval '1 day') AS d;

INSERT INTO faturamento ("SKU", data, cod_cliente, giro_sku_cliente)
SELECT 'B200', d::date, 2, 10
FROM generate_series(current_date - 400, current_date - 1, interval '1 day') AS d;

INSERT INTO faturamento ("SKU", data, cod_cliente, giro_sku_cliente)
SELECT 'C300', d::date, 2, CASE WHEN d < current_date - 10 THEN 8 ELSE 0 END
FROM generate_series(current_date - 400, current_date - 1, interval '1 day') AS d;
`

// TestDB holds a shared, seeded PostgreSQL container.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
}

// DatasourceConfig returns the map adapter factories accept.
func (db *TestDB) DatasourceConfig() map[string]any {
	return map[string]any{
		"host":     db.Host,
		"port":     db.Port,
		"user":     db.User,
		"password": db.Password,
		"database": db.Database,
		"ssl_mode": "disable",
	}
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container seeded with SalesSchema.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		// postgres logs readiness twice: once for the init server, once for the real one
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testUser, testPassword, host, port.Port(), testDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	if _, err := pool.Exec(ctx, SalesSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to seed sales schema: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		Host:      host,
		Port:      port.Int(),
		Database:  testDatabase,
		User:      testUser,
		Password:  testPassword,
	}, nil
}

// TestRedis holds a shared Redis container.
type TestRedis struct {
	Container testcontainers.Container
	Client    *redis.Client
	Addr      string
}

var (
	sharedRedis     *TestRedis
	sharedRedisOnce sync.Once
	sharedRedisErr  error
)

// GetTestRedis returns a shared Redis container for cache backend tests.
func GetTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedRedisOnce.Do(func() {
		sharedRedis, sharedRedisErr = setupTestRedis()
	})

	if sharedRedisErr != nil {
		t.Fatalf("Failed to setup test redis: %v", sharedRedisErr)
	}

	return sharedRedis
}

func setupTestRedis() (*TestRedis, error) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        RedisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	addr := fmt.Sprintf("%s:%s", host, port.Port())
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &TestRedis{
		Container: container,
		Client:    client,
		Addr:      addr,
	}, nil
}
