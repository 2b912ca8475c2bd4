package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"golang.org/x/oauth2"
)

const defaultLoginTimeout = 5 * time.Minute

// OAuthFlow is one PKCE authorization-code exchange
type OAuthFlow struct {
	config       *oauth2.Config
	listener     net.Listener
	state        string
	codeVerifier string
	codeChan     chan string
	errChan      chan error
}

// NewOAuthFlow creates a flow redirecting to redirectURL. listener may be nil
// when the code is pasted by hand.
func NewOAuthFlow(config *oauth2.Config, listener net.Listener, redirectURL string) (*OAuthFlow, error) {
	if config == nil {
		return nil, fmt.Errorf("OAuth config not set")
	}

	state, err := randomString(base64.URLEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	verifier, err := randomString(base64.RawURLEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	cfg := *config
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("redirect URL not set")
	}

	return &OAuthFlow{
		config:       &cfg,
		listener:     listener,
		state:        state,
		codeVerifier: verifier,
		codeChan:     make(chan string, 1),
		errChan:      make(chan error, 1),
	}, nil
}

// GetAuthURL returns the consent page URL
func (f *OAuthFlow) GetAuthURL() string {
	return f.config.AuthCodeURL(
		f.state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge", codeChallengeS256(f.codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// StartCallbackServer serves the redirect on the flow's listener until ctx is done
func (f *OAuthFlow) StartCallbackServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", f.handleCallback)

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(f.listener); err != nil && err != http.ErrServerClosed {
			f.fail(err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
}

func (f *OAuthFlow) handleCallback(w http.ResponseWriter, r *http.Request) {
	code, err := f.codeFromQuery(r.URL.Query())
	if err != nil {
		f.fail(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.deliver(code)
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<html><body><h1>gdm is authorized</h1><p>You can close this window.</p></body></html>`)
}

// fail and deliver never block; only the first result of a flow is kept
func (f *OAuthFlow) fail(err error) {
	select {
	case f.errChan <- err:
	default:
	}
}

func (f *OAuthFlow) deliver(code string) {
	select {
	case f.codeChan <- code:
	default:
	}
}

func (f *OAuthFlow) codeFromQuery(q url.Values) (string, error) {
	if q.Get("state") != f.state {
		return "", fmt.Errorf("invalid state parameter")
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("auth error: %s", q.Get("error"))
	}
	return code, nil
}

// CodeFromInput accepts either a bare code or the full redirected URL
func (f *OAuthFlow) CodeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("no authorization code entered")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	return f.codeFromQuery(u.Query())
}

// WaitForCode waits for the callback to deliver the authorization code
func (f *OAuthFlow) WaitForCode(timeout time.Duration) (string, error) {
	select {
	case code := <-f.codeChan:
		return code, nil
	case err := <-f.errChan:
		return "", err
	case <-time.After(timeout):
		return "", fmt.Errorf("authentication timed out")
	}
}

// ExchangeCode exchanges the authorization code for tokens
func (f *OAuthFlow) ExchangeCode(ctx context.Context, code string) (*types.Credentials, error) {
	token, err := f.config.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", f.codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	return &types.Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiryDate:   token.Expiry,
		Scopes:       f.config.Scopes,
		Type:         types.AuthTypeOAuth,
	}, nil
}

// Close stops listening for the callback
func (f *OAuthFlow) Close() {
	if f.listener != nil {
		_ = f.listener.Close()
	}
}

func randomString(enc *base64.Encoding) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return enc.EncodeToString(b), nil
}

func codeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// OAuthAuthOptions controls an interactive login
type OAuthAuthOptions struct {
	NoBrowser bool
	// OpenBrowser opens the consent page; nil forces the manual flow
	OpenBrowser func(string) error
	Out         io.Writer
	In          io.Reader
	Timeout     time.Duration
}

func (o *OAuthAuthOptions) defaults() {
	if o.Out == nil {
		o.Out = os.Stderr
	}
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultLoginTimeout
	}
}

// Authenticate runs the login for profile and stores the resulting tokens.
// The loopback redirect is used when a browser can be opened; otherwise the
// user pastes the code or redirected URL.
func (m *Manager) Authenticate(ctx context.Context, profile string, opts OAuthAuthOptions) (*types.Credentials, error) {
	if m.oauthConfig == nil {
		return nil, utils.NewCLIError(utils.ErrCodeAuthClientMissing,
			"No OAuth client configured. Pass --client-id or set GDM_CLIENT_ID and GDM_CLIENT_SECRET.").Err()
	}
	opts.defaults()

	var creds *types.Credentials
	var err error
	if opts.NoBrowser || opts.OpenBrowser == nil || isHeadlessEnv() {
		creds, err = m.authenticateManual(ctx, opts)
	} else {
		creds, err = m.authenticateLoopback(ctx, opts)
	}
	if err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeAuthInvalid, fmt.Sprintf("Login failed: %v", err)).
			WithContext("profile", profile).
			Err()
	}

	if err := m.SaveCredentials(profile, creds); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	return creds, nil
}

func (m *Manager) authenticateLoopback(ctx context.Context, opts OAuthAuthOptions) (*types.Credentials, error) {
	flow, err := newLoopbackFlow(m.oauthConfig)
	if err != nil {
		return m.authenticateManual(ctx, opts)
	}
	defer flow.Close()

	authURL := flow.GetAuthURL()
	fmt.Fprintf(opts.Out, "Opening browser for authentication...\nIf it doesn't open, visit: %s\n", authURL)

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	flow.StartCallbackServer(serverCtx)

	if err := opts.OpenBrowser(authURL); err != nil {
		fmt.Fprintf(opts.Out, "Failed to open browser: %v\nSwitching to manual authentication.\n", err)
		cancel()
		return m.authenticateManual(ctx, opts)
	}

	code, err := flow.WaitForCode(opts.Timeout)
	if err != nil {
		return nil, err
	}
	return flow.ExchangeCode(ctx, code)
}

func (m *Manager) authenticateManual(ctx context.Context, opts OAuthAuthOptions) (*types.Credentials, error) {
	flow, err := newManualFlow(m.oauthConfig)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(opts.Out, "Open this URL in a browser and approve access:\n%s\n", flow.GetAuthURL())
	fmt.Fprint(opts.Out, "Paste the code or the full URL you were redirected to: ")

	line, err := bufio.NewReader(opts.In).ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}
	code, err := flow.CodeFromInput(line)
	if err != nil {
		return nil, err
	}
	return flow.ExchangeCode(ctx, code)
}

func newLoopbackFlow(config *oauth2.Config) (*OAuthFlow, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start local server: %w", err)
	}
	addr := listener.Addr().(*net.TCPAddr)
	return NewOAuthFlow(config, listener, fmt.Sprintf("http://127.0.0.1:%d/callback", addr.Port))
}

func newManualFlow(config *oauth2.Config) (*OAuthFlow, error) {
	return NewOAuthFlow(config, nil, fmt.Sprintf("http://127.0.0.1:%d/callback", pickManualPort()))
}

func pickManualPort() int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err == nil {
		addr := listener.Addr().(*net.TCPAddr)
		_ = listener.Close()
		return addr.Port
	}
	return 8765
}

func isHeadlessEnv() bool {
	if os.Getenv("GDM_NO_BROWSER") != "" {
		return true
	}
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return true
	}
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return true
	}
	return os.Getenv("SSH_CONNECTION") != "" || os.Getenv("SSH_TTY") != ""
}
