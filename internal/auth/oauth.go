package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/term"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"

	"github.com/quantumlife/meetingagent/internal/core"
)

// CallbackPort is where the consent redirect lands
const CallbackPort = 8765

// Scopes needed to read and mark mail and to create events
var Scopes = []string{
	gmail.GmailModifyScope,
	calendar.CalendarEventsScope,
}

// LoadConfig reads an installed-app client secret file. When the file does
// not exist, GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are used instead.
func LoadConfig(credentialsFile string) (*oauth2.Config, error) {
	redirect := fmt.Sprintf("http://localhost:%d/callback", CallbackPort)

	data, err := os.ReadFile(credentialsFile)
	if err == nil {
		cfg, err := google.ConfigFromJSON(data, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to parse client secret file: %v", core.ErrInvalidConfig, err)
		}
		cfg.RedirectURL = redirect
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	id, secret := os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET")
	if id == "" || secret == "" {
		return nil, fmt.Errorf("%w: %s not found and GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET unset",
			core.ErrInvalidConfig, credentialsFile)
	}
	return &oauth2.Config{
		ClientID:     id,
		ClientSecret: secret,
		RedirectURL:  redirect,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}, nil
}

// Flow runs the consent flow and stores the resulting token
type Flow struct {
	config *oauth2.Config
	store  TokenStore
	out    io.Writer
	in     *os.File
}

// NewFlow creates a consent flow. Prompts are written to out; stdin is used
// for manual code entry when the callback server cannot start.
func NewFlow(config *oauth2.Config, store TokenStore, out io.Writer) *Flow {
	return &Flow{config: config, store: store, out: out, in: os.Stdin}
}

// GetAuthURL returns the URL for user authorization
func (f *Flow) GetAuthURL(state string) string {
	return f.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Authorize obtains a token from the user and saves it
func (f *Flow) Authorize(ctx context.Context, timeout time.Duration) (*oauth2.Token, error) {
	state := fmt.Sprintf("meetingagent-%d", time.Now().UnixNano())

	var code string
	server := NewLocalAuthServer(state)
	if err := server.Start(CallbackPort); err != nil {
		code, err = f.promptForCode(state, err)
		if err != nil {
			return nil, err
		}
	} else {
		defer server.Stop(context.Background())

		fmt.Fprintf(f.out, "\nOpen this URL in your browser to authorize the meeting agent:\n\n%s\n\n", f.GetAuthURL(state))
		fmt.Fprintln(f.out, "Waiting for authorization...")

		code, err = server.WaitForCode(ctx, timeout)
		if err != nil {
			return nil, fmt.Errorf("authorization failed: %w", err)
		}
	}

	token, err := f.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	if err := f.store.Save(token); err != nil {
		return nil, err
	}
	return token, nil
}

// promptForCode falls back to pasting the code when no callback server is available
func (f *Flow) promptForCode(state string, cause error) (string, error) {
	if !term.IsTerminal(int(f.in.Fd())) {
		return "", fmt.Errorf("failed to start auth server: %w", cause)
	}

	fmt.Fprintf(f.out, "\nCallback server unavailable (%v).\n", cause)
	fmt.Fprintf(f.out, "Open this URL, approve access, then paste the code parameter from the redirect:\n\n%s\n\nCode: ",
		f.GetAuthURL(state))

	line, err := bufio.NewReader(f.in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("unable to read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", fmt.Errorf("empty authorization code")
	}
	return code, nil
}

// LocalAuthServer handles the OAuth callback locally
type LocalAuthServer struct {
	state    string
	server   *http.Server
	codeChan chan string
	errChan  chan error
}

// NewLocalAuthServer creates a callback server that only accepts the given state
func NewLocalAuthServer(state string) *LocalAuthServer {
	return &LocalAuthServer{
		state:    state,
		codeChan: make(chan string, 1),
		errChan:  make(chan error, 1),
	}
}

// Start binds the port and serves /callback in the background
func (s *LocalAuthServer) Start(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.report(err)
		}
	}()
	return nil
}

// WaitForCode waits for the OAuth callback
func (s *LocalAuthServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case code := <-s.codeChan:
		return code, nil
	case err := <-s.errChan:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(timeout):
		return "", fmt.Errorf("OAuth timeout - no callback received within %v", timeout)
	}
}

// Stop stops the auth server
func (s *LocalAuthServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *LocalAuthServer) report(err error) {
	select {
	case s.errChan <- err:
	default:
	}
}

func (s *LocalAuthServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("state") != s.state {
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		errMsg := q.Get("error")
		if errMsg == "" {
			errMsg = "unknown error"
		}
		s.report(fmt.Errorf("OAuth error: %s", errMsg))
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	select {
	case s.codeChan <- code:
	default:
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Meeting Agent - Connected</title></head>
<body style="font-family: system-ui; text-align: center; margin-top: 20vh;">
	<h1>Gmail and Calendar connected</h1>
	<p>You can close this window and return to the terminal.</p>
</body>
</html>
`)
}
