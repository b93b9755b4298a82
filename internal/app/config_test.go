package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoaderConfig() aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "STORE",
		SkipFlags: true,
		SkipFiles: true,
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/store")
	t.Setenv("PORT", "")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/store", cfg.Storage.DatabaseURL)
	assert.Equal(t, "storefront", cfg.Storage.MongoDatabase)
	assert.Equal(t, "orders.placed", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("STORE_STORAGE_DRIVER", "mongo")
	t.Setenv("STORE_STORAGE_MONGO_URI", "mongodb://db:27017")
	t.Setenv("STORE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PORT", "9000")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "mongodb://db:27017", cfg.Storage.MongoURI)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_PlatformMongoURI(t *testing.T) {
	t.Setenv("STORE_STORAGE_DRIVER", "mongo")
	t.Setenv("MONGODB_URI", "mongodb+srv://cluster.example.net")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)
	assert.Equal(t, "mongodb+srv://cluster.example.net", cfg.Storage.MongoURI)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Run("MissingDatabaseURL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := loadConfig(testLoaderConfig())
		require.ErrorContains(t, err, "database URL is required")
	})

	t.Run("MissingMongoURI", func(t *testing.T) {
		t.Setenv("STORE_STORAGE_DRIVER", "mongo")
		t.Setenv("MONGODB_URI", "")
		_, err := loadConfig(testLoaderConfig())
		require.ErrorContains(t, err, "mongo URI is required")
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		t.Setenv("STORE_STORAGE_DRIVER", "sqlite")
		_, err := loadConfig(testLoaderConfig())
		require.ErrorContains(t, err, `unknown storage driver "sqlite"`)
	})
}
