package config

import (
	"fmt"
)

// WithPort sets the server port.
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing).
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend.
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres).
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMemoryStorage selects the in-memory storage backend.
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage selects the filesystem storage backend.
func WithFilesystemStorage(baseDir, urlPrefix string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.FS.BaseDir = baseDir
		c.FS.URLPrefix = urlPrefix
		return nil
	}
}

// WithS3Storage selects the S3 storage backend.
func WithS3Storage(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		if s3.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.StorageType = "s3"
		c.S3 = s3
		return nil
	}
}

// WithGraphID sets the graph (taxonomy) namespace served by default.
func WithGraphID(graphID string) Option {
	return func(c *ServerConfig) error {
		if graphID == "" {
			return fmt.Errorf("graph id cannot be empty")
		}
		c.GraphID = graphID
		return nil
	}
}

// WithFolders sets the storage folders for uploads and bundles.
func WithFolders(uploadFolder, bundleFolder string) Option {
	return func(c *ServerConfig) error {
		if uploadFolder != "" {
			c.UploadFolder = uploadFolder
		}
		if bundleFolder != "" {
			c.BundleFolder = bundleFolder
		}
		return nil
	}
}

// WithWorkDir sets the local scratch directory used during packaging.
func WithWorkDir(dir string) Option {
	return func(c *ServerConfig) error {
		c.WorkDir = dir
		return nil
	}
}
