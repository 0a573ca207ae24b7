package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

// loadToken reads an oauth2.Token from a JSON file.
func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token file %s has no access token", path)
	}
	if !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now()) {
		return nil, fmt.Errorf("token in %s expired at %s", path, tok.Expiry.Format(time.RFC3339))
	}
	return tok, nil
}

// saveToken writes tok to path, readable by the owner only.
func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

func tokenSource(tok *oauth2.Token) oauth2.TokenSource {
	return oauth2.StaticTokenSource(tok)
}

func newLoginCmd(o *rootOptions) *cobra.Command {
	var token string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an API token for later commands",
		Long:  "Save an API token issued by the dashboard. The token is verified against the API before it is written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
			if ttl > 0 {
				tok.Expiry = time.Now().Add(ttl)
			}

			o.token = token
			c, err := o.newClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, cancel := timeout(cmd)
			defer cancel()
			if _, err := c.ListUsers(ctx); err != nil {
				return fmt.Errorf("verify token: %w", err)
			}

			if err := saveToken(o.tokFile, tok); err != nil {
				return err
			}
			log.Debug().Str("token_file", o.tokFile).Msg("token saved")
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in; token saved to %s\n", o.tokFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "with-token", "", "API token (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Forget the token after this long (0 = never)")
	_ = cmd.MarkFlagRequired("with-token")
	return cmd
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.Remove(o.tokFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
