// Package config holds the configuration of storage providers.
package config

// StorageConfig holds configuration for a single storage provider.
type StorageConfig struct {
	Type            string `yaml:"type"`             // "local" or "gcs".
	BucketName      string `yaml:"bucket_name"`      // Default bucket when a gs:// location omits it.
	CredentialsFile string `yaml:"credentials_file"` // Service account key for GCS; empty means application default credentials.
	BaseDir         string `yaml:"base_dir"`         // Root for relative local paths.
}

// DatasourcesConfig holds named storage configurations.
type DatasourcesConfig map[string]StorageConfig
