package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowstack/graph-content/pkg/graphcontent/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "content", cfg.DBSchema)
	assert.Equal(t, "memory", cfg.StorageType)
	assert.Equal(t, "domain", cfg.GraphID)
	assert.Equal(t, "content", cfg.UploadFolder)
	assert.Equal(t, "ecar_files", cfg.BundleFolder)
}

func TestLoadWithOptions(t *testing.T) {
	cfg, err := config.Load(
		config.WithPort("9090"),
		config.WithEnvironment("production"),
		config.WithDatabase("postgres", "postgresql://localhost/content"),
		config.WithDatabaseSchema("learning"),
		config.WithFilesystemStorage("/tmp/data", "http://localhost:9090/files"),
		config.WithGraphID("literacy"),
		config.WithFolders("uploads", "bundles"),
		config.WithWorkDir("/tmp/work"),
	)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "postgresql://localhost/content", cfg.DatabaseURL)
	assert.Equal(t, "learning", cfg.DBSchema)
	assert.Equal(t, "fs", cfg.StorageType)
	assert.Equal(t, "/tmp/data", cfg.FS.BaseDir)
	assert.Equal(t, "http://localhost:9090/files", cfg.FS.URLPrefix)
	assert.Equal(t, "literacy", cfg.GraphID)
	assert.Equal(t, "uploads", cfg.UploadFolder)
	assert.Equal(t, "bundles", cfg.BundleFolder)
	assert.Equal(t, "/tmp/work", cfg.WorkDir)
}

func TestLoadOptionErrors(t *testing.T) {
	tests := []struct {
		name   string
		option config.Option
	}{
		{"EmptyPort", config.WithPort("")},
		{"EmptyEnvironment", config.WithEnvironment("")},
		{"BadDatabaseType", config.WithDatabase("mysql", "mysql://localhost")},
		{"PostgresWithoutURL", config.WithDatabase("postgres", "")},
		{"EmptyFSBaseDir", config.WithFilesystemStorage("", "")},
		{"EmptyS3Bucket", config.WithS3Storage(config.S3Config{})},
		{"EmptyGraphID", config.WithGraphID("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(tt.option)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("UnsupportedStorageType", func(t *testing.T) {
		cfg := &config.ServerConfig{
			Port:         "8080",
			DatabaseType: "memory",
			StorageType:  "tape",
			GraphID:      "domain",
		}
		assert.Error(t, cfg.Validate())
	})

	t.Run("S3RequiresBucket", func(t *testing.T) {
		cfg := &config.ServerConfig{
			Port:         "8080",
			DatabaseType: "memory",
			StorageType:  "s3",
			GraphID:      "domain",
		}
		assert.Error(t, cfg.Validate())
	})
}

func TestBuildServiceMemory(t *testing.T) {
	cfg, err := config.Load(config.WithWorkDir(t.TempDir()))
	require.NoError(t, err)

	svc, err := cfg.BuildService()
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestBuildServiceFilesystem(t *testing.T) {
	cfg, err := config.Load(
		config.WithFilesystemStorage(t.TempDir(), ""),
		config.WithWorkDir(t.TempDir()),
	)
	require.NoError(t, err)

	svc, err := cfg.BuildService()
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
