// Package cli implements deskctl, a terminal front-end over the desk stores.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/internal/config"
	"github.com/mycelian/mycelian-desk/internal/logger"
	"github.com/mycelian/mycelian-desk/store"
)

const defaultTimeout = 15 * time.Second

// rootOptions holds persistent flags. Flags override DESK_* environment.
type rootOptions struct {
	cfg     *config.Config
	apiURL  string
	token   string
	tokFile string
	userID  string
	dev     bool
	debug   bool
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	cfg, err := config.New()
	if err != nil {
		// Fall back to defaults so --help still works with a broken env.
		cfg = &config.Config{APIURL: "http://localhost:8080/api", HTTPTimeout: 30 * time.Second, LogLevel: "info", TokenFile: config.DefaultTokenFile()}
		log.Warn().Err(err).Msg("ignoring invalid DESK_* environment")
	}
	o.cfg = cfg

	rootCmd := &cobra.Command{
		Use:           "deskctl",
		Short:         "deskctl manages tasks and memos on the desk dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := cfg.Level()
			if o.debug {
				level = zerolog.DebugLevel
				_ = os.Setenv("DESK_DEBUG", "true")
			}
			log.Logger = logger.NewConsole("deskctl", level)
			log.Debug().Str("api_url", o.apiURL).Msg("debug logging enabled")
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&o.apiURL, "api-url", cfg.APIURL, "Base URL of the desk API")
	pf.StringVar(&o.token, "token", cfg.Token, "API bearer token (overrides the token file)")
	pf.StringVar(&o.tokFile, "token-file", cfg.TokenFile, "Path of the saved login token")
	pf.StringVar(&o.userID, "user-id", cfg.UserID, "Acting user id")
	pf.BoolVar(&o.dev, "dev", false, "Use the local development token")
	pf.BoolVarP(&o.debug, "debug", "d", cfg.Debug, "Enable verbose debug output")

	rootCmd.AddCommand(newLoginCmd(o))
	rootCmd.AddCommand(newLogoutCmd(o))
	rootCmd.AddCommand(newTasksCmd(o))
	rootCmd.AddCommand(newBoardCmd(o))
	rootCmd.AddCommand(newMemosCmd(o))
	rootCmd.AddCommand(newUsersCmd(o))

	return rootCmd
}

// Execute runs deskctl and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// newClient builds an API client from the resolved credentials.
func (o *rootOptions) newClient() (*client.Client, error) {
	opts := []client.Option{
		client.WithHTTPTimeout(o.cfg.HTTPTimeout),
		client.WithDebugLogging(o.debug),
	}
	if o.dev {
		return client.NewWithDevMode(o.apiURL, opts...)
	}
	if o.token != "" {
		return client.New(o.apiURL, o.token, opts...)
	}
	tok, err := loadToken(o.tokFile)
	if err != nil {
		return nil, fmt.Errorf("not logged in (run `deskctl login`): %w", err)
	}
	return client.New(o.apiURL, "", append(opts, client.WithTokenSource(tokenSource(tok)))...)
}

// openSession builds a client plus session for the acting user. The caller
// must call Logout on the returned session.
func (o *rootOptions) openSession(cmd *cobra.Command) (*store.Session, *client.Client, error) {
	c, err := o.newClient()
	if err != nil {
		return nil, nil, err
	}
	viewer := o.userID
	if viewer == "" {
		viewer = "anonymous"
	}
	s, err := store.NewSession(c, client.User{ID: viewer},
		store.WithNotifier(stderrNotifier(cmd.ErrOrStderr())),
		store.WithLogger(log.Logger),
	)
	if err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	return s, c, nil
}

// requireUser fails commands that act on behalf of a specific user.
func (o *rootOptions) requireUser() error {
	if o.userID == "" {
		return fmt.Errorf("--user-id (or DESK_USER_ID) is required for this command")
	}
	return nil
}

func timeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), defaultTimeout)
}

// stderrNotifier prints store notifications the way a toast would show them.
func stderrNotifier(w io.Writer) store.Notifier {
	return store.NotifierFunc(func(n store.Notification) {
		fmt.Fprintf(w, "%s: %s\n", n.Level, n.String())
	})
}
