package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-bunq"
	"github.com/goliatone/go-bunq/adapters/gologger"
	"github.com/goliatone/go-bunq/core"
	bunqquery "github.com/goliatone/go-bunq/query"
	"github.com/goliatone/go-bunq/ratelimit"
	glog "github.com/goliatone/go-logger/glog"
)

// cliApp carries the flag values and the client shared by every subcommand.
type cliApp struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	envFile     string
	environment string
	apiURL      string
	verbose     bool

	// extra options are applied after the defaults, tests use them to swap
	// the transport.
	extra []bunq.Option

	client *bunq.Client
	facade *bunq.Facade
	logger glog.Logger
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app := &cliApp{out: os.Stdout, errOut: os.Stderr}
	if err := newRootCmd(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(app.errOut, "error:", err)
		return err
	}
	return nil
}

func newRootCmd(app *cliApp) *cobra.Command {
	root := &cobra.Command{
		Use:           "bunq",
		Short:         "Inspect bunq accounts and move money between them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return app.connect(cmd.Flags().Changed("config"))
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app.client == nil {
				return nil
			}
			return app.client.Close()
		},
	}
	root.SetOut(app.out)
	root.SetErr(app.errOut)

	root.PersistentFlags().StringVar(&app.configPath, "config", "bunq.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&app.envFile, "env", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&app.environment, "environment", "", "bunq environment: sandbox or production")
	root.PersistentFlags().StringVar(&app.apiURL, "api-url", "", "override the bunq API base URL")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "log every API call")

	root.AddCommand(statusCmd(app), watchCmd(app), transferCmd(app), linkCardCmd(app))
	return root
}

// connect builds the client and the command facade. The config file is only
// mandatory when --config was given explicitly.
func (a *cliApp) connect(configRequired bool) error {
	if err := loadDotEnv(a.envFile); err != nil {
		return err
	}
	fromFile, err := loadConfigFile(a.configPath, configRequired)
	if err != nil {
		return err
	}
	layer, runtime := configLayers(fromFile, a.environment, a.apiURL)

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	provider := gologger.NewSlogProvider(slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level})))
	a.logger = gologger.Named("bunq.cli", provider, nil)

	opts := []bunq.Option{
		bunq.WithConfigProvider(core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: layer})),
		bunq.WithRateLimitPolicy(ratelimit.NewBunqPolicy()),
		bunq.WithLoggerProvider(provider),
	}
	client, err := bunq.NewClient(runtime, append(opts, a.extra...)...)
	if err != nil {
		return fmt.Errorf("configure client: %s", bunq.ErrorMessage(err))
	}
	facade, err := bunq.NewFacade(client)
	if err != nil {
		return err
	}
	a.client = client
	a.facade = facade
	return nil
}

// refresh loads a fresh snapshot through the status query.
func (a *cliApp) refresh(ctx context.Context) (*bunq.Status, error) {
	return a.facade.Queries().RefreshStatus.Query(ctx, bunqquery.RefreshStatusMessage{})
}
