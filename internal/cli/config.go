package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dl-alexandre/gdm/internal/config"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Show and change the defaults gdm reads from its configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Use 'config show' to see available keys",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigReset,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
}

func configPath() (string, error) {
	if globalFlags.Config != "" {
		return globalFlags.Config, nil
	}
	return config.GetConfigPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	return newOutputWriter().WriteSuccess("config.show", configView{appConfig})
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	out := newOutputWriter()
	key, value := args[0], args[1]

	path, err := configPath()
	if err != nil {
		return err
	}
	fs := afero.NewOsFs()
	cfg, err := config.LoadFile(fs, path)
	if err != nil {
		return utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Err()
	}

	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Save(fs, path); err != nil {
		return utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Failed to save configuration: %v", err)).Err()
	}

	out.Log("Configuration updated: %s = %s", key, value)
	return out.WriteSuccess("config.set", map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	out := newOutputWriter()

	path, err := configPath()
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	if err := cfg.Save(afero.NewOsFs(), path); err != nil {
		return utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("Failed to reset configuration: %v", err)).Err()
	}

	out.Log("Configuration reset to defaults")
	return out.WriteSuccess("config.reset", configView{cfg})
}

// setConfigValue parses value into the field named by key. Range checks
// are left to Config.Validate on save.
func setConfigValue(cfg *config.Config, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, utils.NewCLIError(utils.ErrCodeInvalidArgument,
				fmt.Sprintf("%s must be an integer", key)).Err()
		}
		return n, nil
	}

	var err error
	switch strings.ToLower(key) {
	case "defaultoutputformat":
		cfg.DefaultOutputFormat = types.OutputFormat(value)
	case "maxretries":
		cfg.MaxRetries, err = atoi()
	case "retrybasedelay":
		cfg.RetryBaseDelay, err = atoi()
	case "requesttimeout":
		cfg.RequestTimeout, err = atoi()
	case "loglevel":
		cfg.LogLevel = value
	case "coloroutput":
		cfg.ColorOutput = parseBool(value)
	case "tagfoldername":
		cfg.TagFolderName = value
	case "placeholdertitle":
		cfg.PlaceholderTitle = value
	case "tempdir":
		cfg.TempDir = value
	case "sourceprofile":
		cfg.SourceProfile = value
	case "destprofile":
		cfg.DestProfile = value
	case "keyfile":
		cfg.KeyFile = value
	default:
		return utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Unknown configuration key: %s", key)).Err()
	}
	return err
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// configView renders a configuration as key/value rows
type configView struct {
	*config.Config
}

func (v configView) AsTableRenderer() types.TableRenderer {
	return v
}

func (v configView) Headers() []string {
	return []string{"Key", "Value"}
}

func (v configView) Rows() [][]string {
	c := v.Config
	return [][]string{
		{"defaultOutputFormat", string(c.DefaultOutputFormat)},
		{"maxRetries", strconv.Itoa(c.MaxRetries)},
		{"retryBaseDelay", strconv.Itoa(c.RetryBaseDelay)},
		{"requestTimeout", strconv.Itoa(c.RequestTimeout)},
		{"logLevel", c.LogLevel},
		{"colorOutput", strconv.FormatBool(c.ColorOutput)},
		{"tagFolderName", c.TagFolderName},
		{"placeholderTitle", c.PlaceholderTitle},
		{"tempDir", c.TempDir},
		{"sourceProfile", c.SourceProfile},
		{"destProfile", c.DestProfile},
		{"keyFile", c.KeyFile},
	}
}

func (v configView) EmptyMessage() string {
	return "No configuration"
}
