package cli

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"aptlyctl/internal/app"
	"aptlyctl/internal/types"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "APTLYCTL"

type RootConfig struct {
	ConfigFile      string
	SettingsFile    string
	EnvFile         string
	LogLevel        string
	AptlyBinary     string
	AptlyConfig     string
	GPGBinary       string
	Keyring         string
	Keyserver       string
	MinAptlyVersion string
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg(errorMessage(err))
		return exitCodeForError(err)
	}
	return 0
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:           "aptlyctl",
		Short:         "Converge aptly mirrors, repos, snapshots and publishes to a declared state",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(cfg.EnvFile); err != nil {
				return err
			}
			if err := initConfig(cfg.SettingsFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(log.Logger.WithContext(ctx))
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&cfg.ConfigFile, "config", "c", "", "Desired state file (TOML or YAML)")
	flags.StringVar(&cfg.SettingsFile, "settings", "", "Settings file for aptlyctl itself")
	flags.StringVar(&cfg.EnvFile, "env-file", "", "Dotenv file loaded before settings are read")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.AptlyBinary, "aptly-bin", types.DefaultAptlyBinary, "aptly executable")
	flags.StringVar(&cfg.AptlyConfig, "aptly-config", "", "aptly configuration file passed as -config")
	flags.StringVar(&cfg.GPGBinary, "gpg-bin", types.DefaultGPGBinary, "gpg executable used to import mirror keys")
	flags.StringVar(&cfg.Keyring, "keyring", types.DefaultKeyring, "Keyring aptly verifies mirrors against")
	flags.StringVar(&cfg.Keyserver, "keyserver", types.DefaultKeyserver, "Keyserver for mirror gpg-keys")
	flags.StringVar(&cfg.MinAptlyVersion, "min-aptly-version", types.DefaultMinAptlyVersion, "Oldest accepted aptly version (empty disables the check)")
	for key, name := range map[string]string{
		"config":            "config",
		"log_level":         "log-level",
		"aptly_bin":         "aptly-bin",
		"aptly_config":      "aptly-config",
		"gpg_bin":           "gpg-bin",
		"keyring":           "keyring",
		"keyserver":         "keyserver",
		"min_aptly_version": "min-aptly-version",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(newEntityCommand(types.EntityMirror, "Create or update mirrors"))
	cmd.AddCommand(newEntityCommand(types.EntityRepo, "Create local repos"))
	cmd.AddCommand(newEntityCommand(types.EntitySnapshot, "Create or rotate snapshots"))
	cmd.AddCommand(newEntityCommand(types.EntityPublish, "Create or update publishes"))
	cmd.AddCommand(newStateCommand())
	cmd.AddCommand(newSyncCommand())
	cmd.AddCommand(newWatchCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newPruneCommand())
	return cmd
}

func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Overload(path); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to load env file").
			WithCause(err)
	}
	return nil
}

func initConfig(settingsFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if settingsFile != "" {
		viper.SetConfigFile(settingsFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read settings file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("aptlyctl")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/aptlyctl")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
	})
	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// settingsFromViper collects the process settings after flags, environment
// and settings file were merged.
func settingsFromViper() types.Settings {
	settings := types.Settings{
		AptlyBinary:     viper.GetString("aptly_bin"),
		AptlyConfig:     viper.GetString("aptly_config"),
		GPGBinary:       viper.GetString("gpg_bin"),
		Keyring:         viper.GetString("keyring"),
		Keyserver:       viper.GetString("keyserver"),
		MinAptlyVersion: viper.GetString("min_aptly_version"),
	}.WithDefaults()
	if viper.IsSet("min_aptly_version") && strings.TrimSpace(viper.GetString("min_aptly_version")) == "" {
		settings.MinAptlyVersion = ""
	}
	return settings
}

func newAppService() app.Service {
	return app.NewService(settingsFromViper())
}

func exitCodeForError(err error) int {
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeNotFound, errbuilder.CodeAlreadyExists:
		return 2
	case errbuilder.CodePermissionDenied:
		return 3
	case errbuilder.CodeFailedPrecondition:
		return 4
	case errbuilder.CodeInternal:
		return 5
	default:
		return 1
	}
}

func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
