package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-go-golems/grillo/cmd/grillo/cmds"
	"github.com/go-go-golems/grillo/pkg/settings"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:           "grillo",
	Short:         "grillo holds multi-turn conversations with a hosted OpenAI assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetBool("verbose")
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initConfig(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("grillo")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.grillo")
		viper.AddConfigPath("/etc/grillo")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(xdgConfigPath + "/grillo")
		}
	}

	err := viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file, flags and environment only
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := settings.SetDefaults(viper.GetViper()); err != nil {
		return err
	}
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}
	// default is json
	var logWriter io.Writer
	if config.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	} else {
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, //days
				},
			})
	}

	log.Logger = log.Output(logWriter)

	switch config.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	default:
		return fmt.Errorf("unknown log level %q", config.Level)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cmds.ExitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()

	// logging flags
	flags.Bool("with-caller", false, "Log caller")
	flags.String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	flags.String("log-format", "text", "Log format (json, text)")
	flags.String("log-file", "", "Log file (default: stderr)")
	flags.Bool("verbose", false, "Verbose output")

	flags.String("config", "", "Path to config file (default ~/.grillo/config.yaml)")

	flags.String(settings.KeyAPIKey, "", "OpenAI API key (env OPENAI_API_KEY)")
	flags.String(settings.KeyBaseURL, "", "OpenAI API base URL")
	flags.Bool(settings.KeyAllowLocalURL, false, "Accept a plain http or local network base URL")
	flags.String(settings.KeyOrganization, "", "OpenAI organization")
	flags.Duration(settings.KeyClientTimeout, 60*time.Second, "Timeout of a single API call")
	flags.String(settings.KeyAssistantID, "", "Default assistant id (env ASSISTANCE_ID)")
	flags.Duration(settings.KeyPollInterval, 500*time.Millisecond, "First wait between run status polls")
	flags.Duration(settings.KeyMaxPollInterval, 3*time.Second, "Longest wait between run status polls")
	flags.Float64(settings.KeyPollMultiplier, 1.5, "Growth of the wait between polls")
	flags.Duration(settings.KeyRunTimeout, 90*time.Second, "How long a run may take before it is abandoned")
	flags.Bool(settings.KeyCancelOnAbandon, true, "Cancel runs that time out or whose question was cancelled")
	flags.Bool(settings.KeyStrictReply, false, "Only return a reply that follows the asked question")

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			configFile = strings.TrimPrefix(arg, "--config=")
		}
	}

	if err := initConfig(rootCmd, configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		cmds.NewServeCommand(),
		cmds.NewAskCommand(),
		cmds.NewChatCommand(),
		cmds.NewSessionCommand(),
		cmds.NewResolveCommand(),
		cmds.NewUnitTestCommand(),
		cmds.NewConfigCommand(),
	)
}
