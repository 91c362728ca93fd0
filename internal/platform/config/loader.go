package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: BULWARK_REDIS_URL -> redis.url.
const EnvPrefix = "BULWARK"

// Loader reads configuration into a Config.
type Loader struct {
	v       *viper.Viper
	logger  *slog.Logger
	envFile string
}

// NewLoader creates a loader. configFile may be empty, in which case
// bulwark.yaml is searched in the working directory and /etc/bulwark.
func NewLoader(configFile string, logger *slog.Logger) *Loader {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("bulwark")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/bulwark")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{v: v, logger: logger, envFile: ".env"}
}

// WithEnvFile overrides the dotenv path. Empty disables dotenv loading.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load returns the merged configuration. Only an unreadable (as opposed to
// missing) config file is an error; invalid values are defaulted.
func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("failed to load env file", "path", l.envFile, "error", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Default()
	bindEnvKeys(l.v, reflect.TypeOf(*cfg), "")
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	Sanitize(cfg, l.logger)
	return cfg, nil
}

// bindEnvKeys registers every leaf key so AutomaticEnv overrides fields that
// do not appear in the config file.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		switch f.Type.Kind() {
		case reflect.Struct:
			bindEnvKeys(v, f.Type, key)
			continue
		case reflect.Map:
			// Map entries are file-only; their keys are not known up front.
			continue
		}
		_ = v.BindEnv(key)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Sanitize validates cfg and resets every invalid field to its default,
// logging one warning per field. It returns the namespaces that were reset.
func Sanitize(cfg *Config, logger *slog.Logger) []string {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		logger.Warn("config validation failed", "error", err)
		return nil
	}

	defaults := reflect.ValueOf(Default()).Elem()
	target := reflect.ValueOf(cfg).Elem()
	reset := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := strings.Split(fe.StructNamespace(), ".")[1:]
		if resetField(target, defaults, path) {
			reset = append(reset, fe.Namespace())
			logger.Warn("invalid config value replaced with default",
				"field", fe.Namespace(),
				"rule", fe.Tag(),
				"value", fmt.Sprintf("%v", fe.Value()),
			)
		}
	}
	return reset
}

// resetField copies the default value at path onto target. Path segments
// may address a map entry ("Buckets[upload]") or a slice element
// ("Allowlist[2]"); a map entry without a default is deleted and a slice
// element is replaced by the whole default slice.
func resetField(target, def reflect.Value, path []string) bool {
	if len(path) == 0 {
		return false
	}
	name, index, indexed := strings.Cut(path[0], "[")
	index = strings.TrimSuffix(index, "]")

	tf := target.FieldByName(name)
	df := def.FieldByName(name)
	if !tf.IsValid() || !tf.CanSet() {
		return false
	}

	if !indexed {
		if len(path) == 1 {
			tf.Set(df)
			return true
		}
		return resetField(tf, df, path[1:])
	}

	switch tf.Kind() {
	case reflect.Map:
		key := reflect.ValueOf(index).Convert(tf.Type().Key())
		if dv := df.MapIndex(key); dv.IsValid() {
			tf.SetMapIndex(key, dv)
		} else {
			tf.SetMapIndex(key, reflect.Value{})
		}
		return true
	case reflect.Slice:
		tf.Set(df)
		return true
	default:
		return false
	}
}
