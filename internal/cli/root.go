package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/dl-alexandre/gdm/internal/config"
	"github.com/dl-alexandre/gdm/internal/logging"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/dl-alexandre/gdm/pkg/version"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	globalFlags    types.GlobalFlags
	appConfig      *config.Config
	logger         logging.Logger = logging.NewNoOpLogger()
	debugTransport *logging.DebugTransport
	traceID        string
)

var rootCmd = &cobra.Command{
	Use:   "gdm",
	Short: "Google Docs Migrator - move documents between Google accounts",
	Long: `gdm copies the documents owned by one Google account into another,
together with their folders, sharing and flags. Documents shared with the
source account can be added to the destination account as well.

Each account is authorized once with 'gdm auth login --profile <name>'.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(afero.NewOsFs())
		if err != nil {
			return utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Err()
		}
		appConfig = cfg

		if err := validateGlobalFlags(cmd); err != nil {
			return err
		}

		logger, debugTransport, err = logging.NewDebugLoggerWithTransport(logConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		traceID = uuid.New().String()
		cmd.SetContext(logging.ContextWithTraceID(cmd.Context(), traceID))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if globalFlags.OutputFormat == types.OutputFormatJSON {
			_ = newOutputWriter().WriteSuccess("version", version.Get())
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar((*string)(&globalFlags.OutputFormat), "output", "", "Output format (json, table)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format (alias for --output json)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "Log every Drive API request")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "Path to log file")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		_ = cmd.Usage()
		return utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Err()
	})

	rootCmd.AddCommand(versionCmd)
}

func loadConfig(fs afero.Fs) (*config.Config, error) {
	if globalFlags.Config != "" {
		return config.LoadFile(fs, globalFlags.Config)
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}
	return config.LoadFile(fs, path)
}

func validateGlobalFlags(cmd *cobra.Command) error {
	if globalFlags.JSON {
		globalFlags.OutputFormat = types.OutputFormatJSON
	}
	if globalFlags.OutputFormat == "" {
		globalFlags.OutputFormat = appConfig.DefaultOutputFormat
	}

	if globalFlags.OutputFormat != types.OutputFormatJSON && globalFlags.OutputFormat != types.OutputFormatTable {
		_ = cmd.Usage()
		return utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid output format: %s", globalFlags.OutputFormat)).Err()
	}
	return nil
}

func logConfig(cfg *config.Config) logging.LogConfig {
	lc := logging.DefaultLogConfig()
	lc.OutputFile = globalFlags.LogFile
	lc.EnableDebug = globalFlags.Debug
	lc.EnableColor = cfg.ColorOutput

	if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
		lc.Level = level
	}
	if globalFlags.Verbose {
		lc.Level = logging.DEBUG
	}
	if globalFlags.Quiet {
		lc.EnableConsole = false
	}
	if globalFlags.OutputFormat == types.OutputFormatJSON && !globalFlags.Verbose && !globalFlags.Debug {
		lc.EnableConsole = false
	}
	return lc
}

func newOutputWriter() *OutputWriter {
	return NewOutputWriter(globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose).WithTraceID(traceID)
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return utils.ExitSuccess
	}

	code := exitCodeFor(err)
	reportError(cmd, err)
	return code
}

func exitCodeFor(err error) int {
	if err == nil {
		return utils.ExitSuccess
	}
	return utils.GetExitCode(utils.ErrorCode(err))
}

func reportError(cmd *cobra.Command, err error) {
	var appErr *utils.AppError
	cliErr := types.CLIError{Code: utils.ErrCodeUnknown, Message: err.Error()}
	if errors.As(err, &appErr) {
		cliErr = appErr.CLIError
	}

	name := "gdm"
	if cmd != nil {
		name = cmd.Name()
	}
	_ = newOutputWriter().WriteError(name, cliErr)
}
