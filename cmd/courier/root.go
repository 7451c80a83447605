package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvusHold/courier/internal/config"
)

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		envFile string
	)
	root := &cobra.Command{
		Use:   "courier",
		Short: "Courier - multi-channel notification dispatch",
		Long: `Courier sends email and SMS notifications to explicit destinations or to directory
recipients (users, departments, groups, tenants, roles), issues verification codes and
tracks the delivery status of every unit it sends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return withCode(exitConfig, err)
			}
			if err := applyConfigFile(cfgFile); err != nil {
				return withCode(exitConfig, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml) whose keys map to environment variables")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newSweepCmd(),
		newPurgeCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return root
}

// loadEnvFile loads a dotenv file without overriding variables already set. A missing
// file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyConfigFile exports the keys of a config file as environment variables
// (redis_addr -> REDIS_ADDR) unless the environment already sets them.
func applyConfigFile(path string) error {
	if path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		env := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if _, set := os.LookupEnv(env); set {
			continue
		}
		if err := os.Setenv(env, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, withCode(exitConfig, fmt.Errorf("config: %w", err))
	}
	return cfg, nil
}
