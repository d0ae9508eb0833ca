package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/templatizer-backend/cmd/flags"
	"github.com/ruteri/templatizer-backend/common"
	"github.com/ruteri/templatizer-backend/configresolver"
	"github.com/ruteri/templatizer-backend/credentials"
	"github.com/ruteri/templatizer-backend/githubapi"
	"github.com/ruteri/templatizer-backend/httpserver"
	"github.com/ruteri/templatizer-backend/metrics"
	"github.com/ruteri/templatizer-backend/planner"
	"github.com/ruteri/templatizer-backend/secrets"
	"github.com/ruteri/templatizer-backend/storage"
	"github.com/urfave/cli/v2"
)

var serverFlags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:    "listen-addr",
		Value:   "127.0.0.1:8080",
		Usage:   "address to listen on for API",
		EnvVars: []string{"TEMPLATIZER_LISTEN_ADDR"},
	},
	&cli.Int64Flag{
		Name:     "app-id",
		Required: true,
		Usage:    "GitHub App id used as the issuer of signed assertions",
		EnvVars:  []string{"TEMPLATIZER_APP_ID"},
	},
	&cli.StringFlag{
		Name:    "private-key-name",
		Value:   credentials.DefaultPrivateKeySecret,
		Usage:   "name of the GitHub App private key in the secret provider",
		EnvVars: []string{"TEMPLATIZER_PRIVATE_KEY_NAME"},
	},
	&cli.DurationFlag{
		Name:    "assertion-ttl",
		Value:   credentials.DefaultAssertionTTL,
		Usage:   "lifetime of signed assertions, at most 10m",
		EnvVars: []string{"TEMPLATIZER_ASSERTION_TTL"},
	},
	&cli.StringSliceFlag{
		Name:    "store",
		Value:   cli.NewStringSlice("memory://"),
		Usage:   "config store URI, repeat to mirror writes: memory://, redis://host:port/db, bolt:///path, s3://bucket/prefix, file:///dir",
		EnvVars: []string{"TEMPLATIZER_STORES"},
	},
	&cli.StringFlag{
		Name:    "config-path",
		Value:   configresolver.DefaultConfigPath,
		Usage:   "path of the configuration document inside a repository",
		EnvVars: []string{"TEMPLATIZER_CONFIG_PATH"},
	},
	&cli.StringFlag{
		Name:    "org-config-repo",
		Value:   configresolver.DefaultOrgConfigRepo,
		Usage:   "organization repository consulted when a repository has no configuration",
		EnvVars: []string{"TEMPLATIZER_ORG_CONFIG_REPO"},
	},
	&cli.BoolFlag{
		Name:    "dedup-paths",
		Value:   false,
		Usage:   "report a changed path only for the first commit of a push that touched it",
		EnvVars: []string{"TEMPLATIZER_DEDUP_PATHS"},
	},
	flags.SecretsURIFlag,
	flags.WebhookSecretNameFlag,
	flags.GitHubAPIFlag,
	flags.DeliveryTimeoutFlag,
	flags.LogServiceFlagFn("templatizer"),
}

func main() {
	app := &cli.App{
		Name:    "templatizer-server",
		Usage:   "Serve GitHub webhooks and plan template propagation to subscriber repositories",
		Version: common.Version,
		Flags:   append(serverFlags, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"))

			metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr)
			if err != nil {
				logger.Error("Failed to create metrics server", "err", err)
				return err
			}
			collectors := metricsSrv.Collectors

			secretProvider, err := secrets.ProviderFor(cCtx.String(flags.SecretsURIFlag.Name), logger)
			if err != nil {
				logger.Error("Failed to create secret provider", "err", err)
				return err
			}
			logger.Info("Using secret provider", "provider", secretProvider.Name())

			apiClient, err := githubapi.NewClient(cCtx.String(flags.GitHubAPIFlag.Name), &http.Client{Timeout: 30 * time.Second})
			if err != nil {
				logger.Error("Invalid GitHub API URL", "err", err)
				return err
			}

			credentialManager, err := credentials.NewManager(credentials.Config{
				AppID:               cCtx.Int64("app-id"),
				PrivateKeySecret:    cCtx.String("private-key-name"),
				WebhookSecretSecret: cCtx.String(flags.WebhookSecretNameFlag.Name),
				AssertionTTL:        cCtx.Duration("assertion-ttl"),
				Secrets:             secretProvider,
				Exchanger:           apiClient,
				Metrics:             collectors,
				Log:                 logger,
			})
			if err != nil {
				logger.Error("Failed to create credential manager", "err", err)
				return err
			}

			storeFactory := storage.NewStoreFactory(logger)
			store, err := storeFactory.CreateMultiStore(cCtx.StringSlice("store"))
			if err != nil {
				logger.Error("Failed to create config store", "err", err)
				return err
			}
			defer store.Close()
			logger.Info("Using config store", "store", store.Name())

			resolver := configresolver.NewResolver(credentialManager, apiClient, configresolver.Options{
				ConfigPath:    cCtx.String("config-path"),
				OrgConfigRepo: cCtx.String("org-config-repo"),
				Metrics:       collectors,
				Log:           logger,
			})

			handler, err := httpserver.NewHandler(httpserver.HandlerConfig{
				Signatures: credentialManager,
				Planner: planner.NewPlanner(resolver, store, planner.Options{
					DeduplicatePaths: cCtx.Bool("dedup-paths"),
					Log:              logger,
				}),
				Executor:        planner.NewLogExecutor(logger, collectors),
				Store:           store,
				DeliveryTimeout: cfg.DeliveryTimeout,
				Metrics:         collectors,
				Log:             logger,
			})
			if err != nil {
				logger.Error("Failed to create handler", "err", err)
				return err
			}

			server, err := httpserver.New(cfg, handler, metricsSrv)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
