package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dl-alexandre/gdm/internal/auth"
	"github.com/dl-alexandre/gdm/internal/config"
	"github.com/dl-alexandre/gdm/internal/logging"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/juju/webbrowser"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Google accounts",
	Long: `Store OAuth credentials for the accounts taking part in a migration.
Each account gets its own profile; migrate uses the profiles named by
--source-profile and --dest-profile.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize an account and store its credentials",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the credentials stored for a profile",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List credential profiles",
	Args:  cobra.NoArgs,
	RunE:  runAuthProfiles,
}

var (
	authProfile   string
	authNoBrowser bool
	clientID      string
	clientSecret  string
)

func init() {
	authCmd.PersistentFlags().StringVar(&authProfile, "profile", "default", "Credential profile")
	authLoginCmd.Flags().BoolVar(&authNoBrowser, "no-browser", false, "Print the consent URL and read the code from stdin")
	authLoginCmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client ID")
	authLoginCmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authProfilesCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	out := newOutputWriter()

	id, secret, err := auth.ResolveOAuthClient(clientID, clientSecret)
	if err != nil {
		return err
	}

	mgr := auth.NewManager(getConfigDir())
	if warning := mgr.GetStorageWarning(); warning != "" {
		out.Log("%s", warning)
	}
	mgr.SetOAuthConfig(id, secret, utils.ScopesMigration)

	creds, err := mgr.Authenticate(cmd.Context(), authProfile, auth.OAuthAuthOptions{
		NoBrowser:   authNoBrowser,
		OpenBrowser: openBrowser,
		Out:         cmd.ErrOrStderr(),
		In:          cmd.InOrStdin(),
	})
	if err != nil {
		return err
	}

	logger.Info("stored credentials", logging.F("profile", authProfile), logging.F("backend", mgr.GetStorageBackend()))
	out.Log("Successfully authenticated profile %s", authProfile)
	return out.WriteSuccess("auth.login", newProfileStatus(mgr, authProfile, creds))
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	out := newOutputWriter()
	mgr := auth.NewManager(getConfigDir())

	if err := mgr.DeleteCredentials(authProfile); err != nil {
		return utils.NewCLIError(utils.ErrCodeAuthRequired,
			fmt.Sprintf("No credentials found for profile '%s'", authProfile)).Err()
	}

	out.Log("Credentials removed for profile: %s", authProfile)
	return out.WriteSuccess("auth.logout", map[string]interface{}{
		"profile": authProfile,
		"status":  "logged_out",
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	out := newOutputWriter()
	mgr := auth.NewManager(getConfigDir())

	if warning := mgr.GetStorageWarning(); warning != "" && globalFlags.Verbose {
		out.Log("%s", warning)
	}

	creds, err := mgr.LoadCredentials(authProfile)
	if err != nil {
		return out.WriteSuccess("auth.status", profileList{{
			Profile: authProfile,
			Backend: mgr.GetStorageBackend(),
			Error:   err.Error(),
		}})
	}
	return out.WriteSuccess("auth.status", profileList{newProfileStatus(mgr, authProfile, creds)})
}

func runAuthProfiles(cmd *cobra.Command, args []string) error {
	out := newOutputWriter()
	mgr := auth.NewManager(getConfigDir())

	profiles, err := mgr.ListProfiles()
	if err != nil {
		return utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("Failed to list profiles: %v", err)).Err()
	}

	list := make(profileList, 0, len(profiles))
	for _, profile := range profiles {
		creds, err := mgr.LoadCredentials(profile)
		if err != nil {
			list = append(list, profileStatus{Profile: profile, Backend: mgr.GetStorageBackend(), Error: err.Error()})
			continue
		}
		list = append(list, newProfileStatus(mgr, profile, creds))
	}
	return out.WriteSuccess("auth.profiles", list)
}

// profileStatus describes the credentials stored under one profile
type profileStatus struct {
	Profile       string         `json:"profile"`
	Authenticated bool           `json:"authenticated"`
	Type          types.AuthType `json:"type,omitempty"`
	Scopes        []string       `json:"scopes,omitempty"`
	Expiry        string         `json:"expiry,omitempty"`
	NeedsRefresh  bool           `json:"needsRefresh"`
	Backend       string         `json:"storageBackend"`
	Error         string         `json:"error,omitempty"`
}

func newProfileStatus(mgr *auth.Manager, profile string, creds *types.Credentials) profileStatus {
	return profileStatus{
		Profile:       profile,
		Authenticated: creds.RefreshToken != "" || time.Now().Before(creds.ExpiryDate),
		Type:          creds.Type,
		Scopes:        creds.Scopes,
		Expiry:        creds.ExpiryDate.Format(time.RFC3339),
		NeedsRefresh:  mgr.NeedsRefresh(creds),
		Backend:       mgr.GetStorageBackend(),
	}
}

type profileList []profileStatus

func (l profileList) AsTableRenderer() types.TableRenderer {
	return l
}

func (l profileList) Headers() []string {
	return []string{"Profile", "Authenticated", "Type", "Expiry", "Scopes"}
}

func (l profileList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		expiry := p.Expiry
		if p.Error != "" {
			expiry = p.Error
		}
		rows = append(rows, []string{
			p.Profile,
			fmt.Sprintf("%t", p.Authenticated),
			string(p.Type),
			expiry,
			truncate(strings.Join(p.Scopes, ","), 60),
		})
	}
	return rows
}

func (l profileList) EmptyMessage() string {
	return "No profiles stored"
}

func getConfigDir() string {
	dir, err := config.GetConfigDir()
	if err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", config.AppDirName)
}

func openBrowser(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	return webbrowser.Open(u)
}
