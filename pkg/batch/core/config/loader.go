package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// LoadConfig builds the configuration in four layers: defaults from NewConfig, the
// .env file (loaded into the process environment), the embedded YAML with ${VAR}
// placeholders expanded, and finally CHUNKBATCH_* environment variables derived
// from the yaml tags.
//
// Parameters:
//
//	envFilePath: The path to the .env file. Empty means ".env" in the working directory.
//	embeddedConfig: The embedded configuration bytes.
//	expander: Expands placeholders in embeddedConfig. Nil means OsEnvironmentExpander.
//
// Returns:
//
//	A pointer to the loaded Config and an error if loading or validation fails.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
	}
	// Keys absent from the YAML keep their defaults.
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	if err := validate(cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads *Config and applies its log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Chunkbatch.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Chunkbatch.System.Logging.Level)
	return cfg, nil
}

func validate(cfg *Config) error {
	cb := cfg.Chunkbatch
	if cb.Batch.ChunkSize <= 0 {
		return fmt.Errorf("batch.chunk_size must be positive, got %d", cb.Batch.ChunkSize)
	}
	switch cb.Infrastructure.JobRepository {
	case "inmemory":
	case "database":
		if !cb.Database.Enabled() {
			return fmt.Errorf("infrastructure.job_repository is 'database' but no database.type is configured")
		}
	default:
		return fmt.Errorf("unknown infrastructure.job_repository %q", cb.Infrastructure.JobRepository)
	}
	for _, name := range []string{cb.Metrics.Exporter, cb.Tracing.Exporter} {
		switch name {
		case "none", "prometheus", "otlp-http", "otlp-grpc":
		default:
			return fmt.Errorf("unknown exporter %q", name)
		}
	}
	if cb.Tracing.Exporter == "prometheus" {
		return fmt.Errorf("prometheus is not a tracing exporter")
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
//
// Parameters:
//
//	val: The reflect.Value of the struct to populate.
//	prefix: The prefix for environment variable names (e.g., "CHUNKBATCH_BATCH_").
//
// Returns an error if any field cannot be set.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists && field.Kind() != reflect.Map {
			continue
		}

		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Struct {
			if err := loadMapOfStructsFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapOfStructsFromEnv loads fields of type map[string]struct{} from environment variables.
// It infers map keys and struct field names from environment variable names.
//
// Example: For the field `Storage map[string]StorageConfig`, the environment variable
// `CHUNKBATCH_STORAGE_OUTPUT_BASE_DIR=/data` sets the `BaseDir` field of the entry
// keyed "output".
//
// Parameters:
//
//	mapField: The reflect.Value of the map field (e.g., `cfg.Chunkbatch.Storage`).
//	prefix: The environment variable prefix for this map (e.g., "CHUNKBATCH_STORAGE_").
func loadMapOfStructsFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}

	elemType := mapField.Type().Elem()

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}

		// OUTPUT_BASE_DIR=/data -> keyAndField="OUTPUT_BASE_DIR", envValue="/data"
		keyPartWithValue := strings.TrimPrefix(env, prefix)
		parts := strings.SplitN(keyPartWithValue, "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := parts[0]
		envValue := parts[1]

		keyAndFieldParts := strings.Split(keyAndField, "_")
		if len(keyAndFieldParts) < 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndFieldParts[0])
		structFieldName := strings.Join(keyAndFieldParts[1:], "_")

		structVal := mapField.MapIndex(reflect.ValueOf(mapKey))
		if !structVal.IsValid() {
			structVal = reflect.New(elemType).Elem()
		}

		if err := setStructFieldFromEnv(structVal, structFieldName, envValue); err != nil {
			return err
		}
		mapField.SetMapIndex(reflect.ValueOf(mapKey), structVal)
	}
	return nil
}

// setStructFieldFromEnv sets the value of a specific struct field from an environment variable.
// It iterates through the struct's fields, matching the `fieldName` (case-insensitively)
// against the field's `yaml` tag.
//
// Parameters:
//
//	structVal: The reflect.Value of the struct instance.
//	fieldName: The name of the field to set (derived from the environment variable).
//	value: The string value to set.
//
// Returns an error if the field cannot be set due to type conversion issues.
func setStructFieldFromEnv(structVal reflect.Value, fieldName string, value string) error {
	typ := structVal.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := structVal.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		if strings.EqualFold(yamlTag, fieldName) {
			return setField(field, value)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, and bool types.
//
// Parameters:
//
//	field: The reflect.Value of the field to set.
//	value: The string value to convert and set.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
