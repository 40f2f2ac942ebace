package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/atlas-backend/pkg/e"
	"github.com/DRSN-tech/atlas-backend/pkg/logger"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("POSTGRES_USER", "atlas")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "atlas")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("KAFKA_TOPIC", "atlas.events")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(logger.NewSlogLogger())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Http.Port)
	assert.Equal(t, 5*time.Second, cfg.Http.ReadTimeout)

	assert.Equal(t, "localhost", cfg.Db.Host)
	assert.Equal(t, "5432", cfg.Db.Port)
	assert.Equal(t, "atlas", cfg.Db.User)
	assert.Equal(t, "disable", cfg.Db.SSLMode)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "atlas.events", cfg.Kafka.Topic)
	assert.Equal(t, "tcp", cfg.Kafka.NetworkMode)
	assert.Equal(t, 1, cfg.Kafka.Partitions)

	assert.Equal(t, 30.0, cfg.Tsne.Perplexity)
	assert.Equal(t, 1000, cfg.Tsne.Iterations)
	assert.Equal(t, 200.0, cfg.Tsne.LearningRate)
	assert.Equal(t, 0.5, cfg.Tsne.Theta)
	assert.Equal(t, 2, cfg.Tsne.Workers)

	assert.Equal(t, int64(256<<20), cfg.Cache.DerivativeCapacityBytes)

	assert.Equal(t, 32, cfg.Stream.DefaultCredits)
	assert.Equal(t, 10*time.Second, cfg.Stream.WriteTimeout)

	assert.Equal(t, uint64(19), cfg.Qdrant.VectorSize)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TSNE_PERPLEXITY", "15.5")
	t.Setenv("TSNE_ITERATIONS", "500")
	t.Setenv("STREAM_DEFAULT_CREDITS", "64")
	t.Setenv("STREAM_WRITE_TIMEOUT", "3s")
	t.Setenv("DERIVATIVE_CACHE_BYTES", "1048576")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := Load(logger.NewSlogLogger())
	require.NoError(t, err)

	assert.Equal(t, 15.5, cfg.Tsne.Perplexity)
	assert.Equal(t, 500, cfg.Tsne.Iterations)
	assert.Equal(t, 64, cfg.Stream.DefaultCredits)
	assert.Equal(t, 3*time.Second, cfg.Stream.WriteTimeout)
	assert.Equal(t, int64(1<<20), cfg.Cache.DerivativeCapacityBytes)
	assert.Equal(t, "9090", cfg.Http.Port)
}

func TestLoad_MissingPostgresUser(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POSTGRES_USER", "")

	_, err := Load(logger.NewSlogLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_USER")
}

func TestLoad_MissingKafkaBrokers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KAFKA_BROKERS", "")

	_, err := Load(logger.NewSlogLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_InvalidInt(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TSNE_ITERATIONS", "many")

	_, err := Load(logger.NewSlogLogger())
	require.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
}
