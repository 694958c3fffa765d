// Package main is the MedKeeper command-line client.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/client/app"
	"github.com/atinyakov/MedKeeper/internal/client/gateway"
	"github.com/atinyakov/MedKeeper/internal/client/prompt"
	"github.com/atinyakov/MedKeeper/internal/config"
	"github.com/atinyakov/MedKeeper/internal/logger"
)

var (
	version   string
	buildDate string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	config    string
	apiURL    string
	tokenFile string
	logLevel  string
	caFile    string
	certFile  string
	keyFile   string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "medkeeper",
		Short:         "MedKeeper clinical records client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.config, "config", "", "path to a JSON config file")
	pf.StringVar(&g.apiURL, "api-url", "", "API base URL")
	pf.StringVar(&g.tokenFile, "token-file", "", "where the session token is kept")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&g.caFile, "ca", "", "path to CA cert")
	pf.StringVar(&g.certFile, "cert", "", "path to client cert")
	pf.StringVar(&g.keyFile, "key", "", "path to client key")

	root.AddCommand(
		loginCmd(&g),
		signupCmd(&g),
		logoutCmd(&g),
		shellCmd(&g),
		versionCmd(),
	)
	return root
}

// loadOptions layers explicitly set flags over the file and environment.
func loadOptions(cmd *cobra.Command, g *globalFlags) (*config.Options, error) {
	opts, err := config.Load(g.config)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("api-url", &opts.APIURL, g.apiURL)
	override("token-file", &opts.TokenFile, g.tokenFile)
	override("log-level", &opts.LogLevel, g.logLevel)
	override("ca", &opts.CAFile, g.caFile)
	override("cert", &opts.CertFile, g.certFile)
	override("key", &opts.KeyFile, g.keyFile)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// withApp builds the App for one command and closes it afterwards.
func withApp(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, a *app.App) error) error {
	opts, err := loadOptions(cmd, g)
	if err != nil {
		return err
	}
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(opts.LogLevel); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, opts, log.Log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Log.Warn("failed to close client", zap.Error(err))
		}
	}()
	return fn(ctx, a)
}

// userError returns the message to show for err.
func userError(err error) string {
	var fe *app.FormError
	if errors.As(err, &fe) {
		return fe.Message
	}
	if gateway.KindOf(err) != gateway.KindUnknown {
		return gateway.MessageOf(err)
	}
	return err.Error()
}

func loginCmd(g *globalFlags) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				if username == "" || password == "" {
					username, password = prompt.New(cmd.InOrStdin(), cmd.OutOrStdout()).Credentials()
				}
				if _, err := a.Login(ctx, username, password); err != nil {
					return fmt.Errorf("login failed: %s", userError(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func signupCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				if a.Router.Go(app.SignupPath).Path != app.SignupPath {
					return errors.New("signup failed: Please log in first.")
				}
				req := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout()).Signup()
				msg, err := a.Signup(ctx, req)
				if err != nil {
					return fmt.Errorf("signup failed: %s", userError(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), cmp.Or(msg.Message, "Account created."))
				return nil
			})
		},
	}
}

func logoutCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(_ context.Context, a *app.App) error {
				if err := a.Logout(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func shellCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				newShell(a, cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx)
				return nil
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build version and date",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "MedKeeper Client\nVersion: %s\nBuild Date: %s\n",
				cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		},
	}
}
