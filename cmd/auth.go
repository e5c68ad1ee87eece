package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxrelay/internal/google"
	"github.com/teemow/inboxrelay/internal/logging"
)

func newAuthCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and store the OAuth token",
		Long: `Print the Google consent URL, then exchange the authorization code for a
token and store it in the token directory. The relay refreshes the token
automatically afterwards.

After granting access the browser is redirected to http://localhost; copy the
'code' query parameter from the address bar.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateAuth(); err != nil {
				return err
			}

			gcfg := googleConfig(cfg)
			if err := authorize(cmd.Context(), gcfg, code, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}

			path, _ := gcfg.TokenPath()
			logger.Info("gmail token stored", logging.File(path))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code; prompted for when empty")
	cmd.Flags().String("account", "default", "Google account name to store the token under. Can also use GMAIL_ACCOUNT env var.")

	return cmd
}

// exchangeFunc is swapped in tests.
var exchangeFunc = google.Exchange

func authorize(ctx context.Context, cfg google.Config, code string, in io.Reader, out io.Writer) error {
	if code == "" {
		fmt.Fprintf(out, "Visit this URL in your browser:\n\n  %s\n\nThen paste the authorization code: ", google.AuthURL(cfg, uuid.NewString()))

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read authorization code: %w", err)
		}
		code = strings.TrimSpace(line)
	}
	if code == "" {
		return errors.New("authorization code is required")
	}

	if err := exchangeFunc(ctx, cfg, code); err != nil {
		return err
	}
	fmt.Fprintln(out, "Authorization successful.")
	return nil
}
