package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable that overrides the config file location.
const EnvConfigPath = "CONFIG_PATH"

// loadEnvFiles loads ENV_FILE when set, otherwise .env.local then .env.
// Missing files are not an error.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the YAML file at path into a T and applies `env` tag
// overrides. A missing file is tolerated when allowMissing is set so the
// CLI can run on defaults and environment alone.
func Load[T any](path string, allowMissing bool) (*T, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	var cfg T
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && allowMissing:
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadWithDefaults is Load followed by setDefaults, then env overrides
// again so the environment always wins.
func LoadWithDefaults[T any](path string, allowMissing bool, setDefaults func(*T)) (*T, error) {
	cfg, err := Load[T](path, allowMissing)
	if err != nil {
		return nil, err
	}
	if setDefaults != nil {
		setDefaults(cfg)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// GetConfigPath returns $CONFIG_PATH or def.
func GetConfigPath(def string) string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	return def
}

func applyEnvOverrides(cfg any) {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	applyEnvToStruct(v)
}

func applyEnvToStruct(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		switch {
		case field.Kind() == reflect.Struct:
			applyEnvToStruct(field)
			continue
		case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			applyEnvToStruct(field.Elem())
			continue
		}

		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		if val := os.Getenv(name); val != "" {
			setFieldFromString(field, val)
		}
	}
}

func setFieldFromString(field reflect.Value, val string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(val); err == nil {
				field.SetInt(int64(d))
			}
			return
		}
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Float32, reflect.Float64:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Bool:
		field.SetBool(parseBool(val))
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(val, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		field.Set(reflect.ValueOf(parts))
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
