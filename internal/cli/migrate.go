package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dl-alexandre/gdm/internal/api"
	"github.com/dl-alexandre/gdm/internal/auth"
	"github.com/dl-alexandre/gdm/internal/config"
	"github.com/dl-alexandre/gdm/internal/logging"
	"github.com/dl-alexandre/gdm/internal/migrate"
	"github.com/dl-alexandre/gdm/internal/remote"
	"github.com/dl-alexandre/gdm/internal/safety"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/dl-alexandre/gdm/pkg/version"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"google.golang.org/api/drive/v3"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy documents from one account to another",
	Long: `Copy every document owned by the source account into the destination
account, recreating its folders, sharing and starred/hidden flags. Migrated
documents are placed in a tag folder in the source account and are skipped
on later runs.

With --shared, documents shared with the source account that the source
account may reshare are added to the destination account too.`,
	Example: `  gdm migrate -u old@example.com -d new@example.com
  gdm migrate -u old@example.com -d new@example.com --test-only --output table
  gdm migrate -u old@example.com -d new@example.com --key-file sa.json --shared`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

// MigrateFlags are the migrate command's flags
type MigrateFlags struct {
	SourceUser    string
	DestUser      string
	SourceProfile string
	DestProfile   string
	KeyFile       string
	TestOnly      bool
	Shared        bool
	OnlyShared    bool
	Tag           string
	Limit         int
}

var migrateFlags MigrateFlags

func init() {
	f := migrateCmd.Flags()
	f.StringVarP(&migrateFlags.SourceUser, "source-user", "u", "", "Account to migrate from (required)")
	f.StringVarP(&migrateFlags.DestUser, "dest-user", "d", "", "Account to migrate to (required)")
	f.StringVar(&migrateFlags.SourceProfile, "source-profile", "", "Credential profile of the source account")
	f.StringVar(&migrateFlags.DestProfile, "dest-profile", "", "Credential profile of the destination account")
	f.StringVar(&migrateFlags.KeyFile, "key-file", "", "Service account key with domain-wide delegation, used for both accounts")
	f.BoolVarP(&migrateFlags.TestOnly, "test-only", "t", false, "Report what would be migrated without changing anything")
	f.BoolVar(&migrateFlags.Shared, "shared", false, "Also add documents shared with the source account")
	f.BoolVar(&migrateFlags.OnlyShared, "only-shared", false, "Only add documents shared with the source account")
	f.StringVar(&migrateFlags.Tag, "tag", "", "Title of the source folder marking migrated documents")
	f.IntVar(&migrateFlags.Limit, "limit", 0, "Maximum documents per pipeline (0 for no limit)")

	rootCmd.AddCommand(migrateCmd)
}

// Validate checks the flag combination
func (f MigrateFlags) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.SourceUser, validation.Required, is.EmailFormat),
		validation.Field(&f.DestUser, validation.Required, is.EmailFormat,
			validation.By(differentAccount(f.SourceUser))),
		validation.Field(&f.OnlyShared, validation.By(exclusiveWith(f.Shared, "--shared"))),
		validation.Field(&f.Limit, validation.Min(0)),
	)
}

func differentAccount(source string) validation.RuleFunc {
	return func(value interface{}) error {
		if dest, _ := value.(string); strings.EqualFold(dest, source) {
			return errors.New("must differ from the source account")
		}
		return nil
	}
}

func exclusiveWith(other bool, name string) validation.RuleFunc {
	return func(value interface{}) error {
		if set, _ := value.(bool); set && other {
			return fmt.Errorf("cannot be combined with %s", name)
		}
		return nil
	}
}

// Options builds the migration options, taking unset values from cfg
func (f MigrateFlags) Options(cfg *config.Config) migrate.Options {
	opts := migrate.DefaultOptions()
	if cfg.TagFolderName != "" {
		opts.TagFolder = cfg.TagFolderName
	}
	if cfg.PlaceholderTitle != "" {
		opts.PlaceholderTitle = cfg.PlaceholderTitle
	}
	if f.Tag != "" {
		opts.TagFolder = f.Tag
	}
	opts.DryRun = f.TestOnly
	opts.IncludeShared = f.Shared
	opts.OnlyShared = f.OnlyShared
	opts.Limit = f.Limit
	return opts
}

// profiles returns the source and destination profiles, flags first
func (f MigrateFlags) profiles(cfg *config.Config) (string, string) {
	source, dest := cfg.SourceProfile, cfg.DestProfile
	if f.SourceProfile != "" {
		source = f.SourceProfile
	}
	if f.DestProfile != "" {
		dest = f.DestProfile
	}
	return source, dest
}

func (f MigrateFlags) keyFile(cfg *config.Config) string {
	if f.KeyFile != "" {
		return f.KeyFile
	}
	return cfg.KeyFile
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := migrateFlags.Validate(); err != nil {
		_ = cmd.Usage()
		return utils.NewCLIError(utils.ErrCodeInvalidArgument, fmt.Sprintf("Invalid arguments: %v", err)).Err()
	}

	ctx := cmd.Context()
	out := newOutputWriter().WithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())
	opts := migrateFlags.Options(appConfig)
	sourceProfile, destProfile := migrateFlags.profiles(appConfig)
	keyFile := migrateFlags.keyFile(appConfig)

	factory := auth.NewServiceFactory(auth.NewManager(getConfigDir()))
	if debugTransport != nil {
		factory.WithTransport(func(base http.RoundTripper) http.RoundTripper {
			return debugTransport.Wrap(base)
		})
	}

	fs := afero.NewOsFs()
	source, err := openAccount(ctx, factory, fs, migrateFlags.SourceUser, sourceProfile, keyFile)
	if err != nil {
		return err
	}
	dest, err := openAccount(ctx, factory, fs, migrateFlags.DestUser, destProfile, keyFile)
	if err != nil {
		return err
	}

	m, err := migrate.New(source, dest, opts, logger)
	if err != nil {
		return err
	}

	report, runErr := m.Run(ctx)
	if report != nil {
		if err := writeReport(out, report); err != nil {
			return err
		}
	}
	return runErr
}

// openAccount builds the remote for account, authorizing it with the key
// file when one is given and with the stored profile otherwise
func openAccount(ctx context.Context, factory *auth.ServiceFactory, fs afero.Fs, account, profile, keyFile string) (*remote.Service, error) {
	var session *auth.Session
	var err error
	if keyFile != "" {
		session, err = factory.ServiceAccountSession(ctx, account, keyFile)
	} else {
		session, err = factory.ProfileSession(ctx, account, profile)
	}
	if err != nil {
		return nil, err
	}

	svc := remote.New(newAPIClient(session.Drive), account,
		remote.WithFs(fs, appConfig.TempDir),
		remote.WithExportClient(types.DocumentTypeSpreadsheet, newAPIClient(session.Export)),
		remote.WithLogger(logger),
	)
	if err := svc.VerifyAccount(ctx); err != nil {
		return nil, err
	}
	logger.Debug("account verified", logging.F("account", account), logging.F("profile", profile))
	return svc, nil
}

func newAPIClient(service *drive.Service) *api.Client {
	service.UserAgent = version.Get().UserAgent()
	return api.NewClient(service, appConfig.MaxRetries, appConfig.RetryBaseDelay, logger).
		WithRequestTimeout(appConfig.GetRequestTimeout())
}

func writeReport(out *OutputWriter, report *migrate.Report) error {
	if err := out.WriteSuccess("migrate", report); err != nil {
		return err
	}
	table := globalFlags.OutputFormat == types.OutputFormatTable
	if table && report.DryRun {
		out.Log("")
		if err := out.renderTable(safety.NewPlanTable(report.Plan)); err != nil {
			return err
		}
	}
	if failures := report.Err(); failures != nil {
		logger.Warn("Some documents were not migrated",
			logging.F("failed", len(report.Failed)),
		)
		if table {
			out.Log("%s", strings.TrimSpace(failures.Error()))
		}
	}
	out.Log("%s", report.Summary())
	return nil
}
