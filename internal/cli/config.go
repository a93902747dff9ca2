package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileName = "catom"
	configFileType = "yaml"

	// Config keys. Each has a flag of the same meaning, and a flag given on
	// the command line wins over the file.
	cfgKeyFormat   = "format"
	cfgKeyLogLevel = "log_level"
	cfgKeyJournal  = "journal"

	defaultFormat   = "text"
	defaultLogLevel = "info"
)

// loadConfig reads the configuration file. With an explicit path the file
// must exist; otherwise catom.yaml in the working directory is optional.
func loadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyFormat, defaultFormat)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyJournal, "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// bindFlag lets a flag override key. The flag value is used only when it
// was set explicitly, so config values survive flag defaults.
func bindFlag(v *viper.Viper, key string, f *pflag.Flag) error {
	if f == nil {
		return nil
	}
	return v.BindPFlag(key, f)
}
