package config

import "github.com/spf13/pflag"

// ProjectConfig holds configuration for the project command.
type ProjectConfig struct {
	Input     string
	PGDSN     string
	StateFile string
	LogLevel  string
}

// LoadProject merges config file, environment variables, and flags.
func LoadProject(cfgFile string, flags *pflag.FlagSet) (ProjectConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ProjectConfig{}, err
	}

	v.SetDefault("log-level", "info")

	return ProjectConfig{
		Input:     v.GetString("in"),
		PGDSN:     v.GetString("pg-dsn"),
		StateFile: v.GetString("state-file"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}
