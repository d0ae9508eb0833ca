package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/templatizer-backend/api"
	"github.com/ruteri/templatizer-backend/api/clients"
	"github.com/ruteri/templatizer-backend/cmd/flags"
	"github.com/ruteri/templatizer-backend/common"
	"github.com/ruteri/templatizer-backend/configresolver"
	"github.com/ruteri/templatizer-backend/credentials"
	"github.com/ruteri/templatizer-backend/interfaces"
	"github.com/ruteri/templatizer-backend/secrets"
	"github.com/ruteri/templatizer-backend/storage"
	"github.com/urfave/cli/v2"
)

var flagRepoID *cli.Int64Flag = &cli.Int64Flag{
	Name:     "repo-id",
	Required: true,
	Usage:    "numeric GitHub repository id",
}

var flagRef *cli.StringFlag = &cli.StringFlag{
	Name:     "ref",
	Required: true,
	Usage:    "subscription reference, owner/repo/group",
}

// flagStore bypasses the server and reads the given store directly.
var flagStore *cli.StringFlag = &cli.StringFlag{
	Name:    "store",
	Usage:   "read from this config store URI instead of the server API",
	EnvVars: []string{"TEMPLATIZER_ADMIN_STORE"},
}

var flagTimeout *cli.DurationFlag = &cli.DurationFlag{
	Name:  "timeout",
	Value: 30 * time.Second,
	Usage: "request timeout",
}

// configSource returns the server client, or a direct store reader when
// --store is set. The returned close function must be called.
func configSource(cCtx *cli.Context) (api.ConfigProvider, func() error, error) {
	storeURI := cCtx.String(flagStore.Name)
	if storeURI == "" {
		client := &clients.ConfigClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name)}
		return client, func() error { return nil }, nil
	}

	store, err := storage.NewStoreFactory(flags.SetupLogger(cCtx)).StoreFor(storeURI)
	if err != nil {
		return nil, nil, err
	}
	return storeReader{store}, store.Close, nil
}

// storeReader adapts a ConfigStore to api.ConfigProvider.
type storeReader struct {
	store interfaces.ConfigStore
}

func (r storeReader) GetConfig(ctx context.Context, repoID int64) (*interfaces.FullConfig, error) {
	return r.store.Get(ctx, repoID)
}

func (r storeReader) FindSubscribers(ctx context.Context, ref string) ([]interfaces.FullConfig, error) {
	return r.store.FindBySubscriptionRef(ctx, ref)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func main() {
	app := &cli.App{
		Name:    "templatizer-admin",
		Usage:   "Inspect stored configurations and replay webhook deliveries",
		Version: common.Version,
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.LogDebugFlag,
			flags.LogJsonFlag,
			flags.LogUidFlag,
			flags.LogServiceFlagFn("templatizer-admin"),
		},
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Print the stored configuration of a repository",
				Flags: []cli.Flag{flagRepoID, flagStore, flagTimeout},
				Action: func(cCtx *cli.Context) error {
					source, closeSource, err := configSource(cCtx)
					if err != nil {
						return err
					}
					defer closeSource()

					ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagTimeout.Name))
					defer cancel()

					cfg, err := source.GetConfig(ctx, cCtx.Int64(flagRepoID.Name))
					if err != nil {
						return err
					}
					return printJSON(cfg)
				},
			},
			{
				Name:  "subscribers",
				Usage: "List the repositories subscribing to a source set",
				Flags: []cli.Flag{flagRef, flagStore, flagTimeout},
				Action: func(cCtx *cli.Context) error {
					ref, err := interfaces.ParseSubscriptionRef(cCtx.String(flagRef.Name))
					if err != nil {
						return err
					}

					source, closeSource, err := configSource(cCtx)
					if err != nil {
						return err
					}
					defer closeSource()

					ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagTimeout.Name))
					defer cancel()

					configs, err := source.FindSubscribers(ctx, ref.String())
					if err != nil {
						return err
					}
					for _, cfg := range configs {
						fmt.Printf("%d\t%s\n", cfg.RepoID, cfg.Repository)
					}
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Parse a local configuration document and print the result",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Value: configresolver.DefaultConfigPath, Usage: "path to the document"},
					&cli.StringFlag{Name: "repository", Usage: "owner/name, to print the subscription reference of each source set"},
				},
				Action: func(cCtx *cli.Context) error {
					data, err := os.ReadFile(cCtx.String("file"))
					if err != nil {
						return err
					}
					cfg, err := configresolver.ParseConfig(data)
					if err != nil {
						return err
					}
					for _, ref := range cfg.ConfigSets {
						if _, err := interfaces.ParseSubscriptionRef(ref); err != nil {
							return err
						}
					}

					if repository := cCtx.String("repository"); repository != "" {
						for _, set := range cfg.SourceSets {
							ref, err := interfaces.NewSubscriptionRef(repository, set.Name)
							if err != nil {
								return err
							}
							fmt.Fprintf(os.Stderr, "source set %s is published as %s\n", set.Name, ref)
						}
					}
					return printJSON(cfg)
				},
			},
			{
				Name:  "replay",
				Usage: "Sign a saved payload with the webhook secret and post it to the server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "path to the JSON payload"},
					&cli.StringFlag{Name: "event", Value: "push", Usage: "X-GitHub-Event value"},
					&cli.StringFlag{Name: "delivery", Usage: "X-GitHub-Delivery value, generated if empty"},
					flags.SecretsURIFlag,
					flags.WebhookSecretNameFlag,
					flagTimeout,
				},
				Action: func(cCtx *cli.Context) error {
					logger := flags.SetupLogger(cCtx)
					body, err := os.ReadFile(cCtx.String("file"))
					if err != nil {
						return err
					}

					provider, err := secrets.ProviderFor(cCtx.String(flags.SecretsURIFlag.Name), logger)
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagTimeout.Name))
					defer cancel()

					secret, err := provider.GetSecret(ctx, cCtx.String(flags.WebhookSecretNameFlag.Name))
					if err != nil {
						return &credentials.CredentialError{Op: "fetch webhook secret", Err: err}
					}

					deliveryID := cCtx.String("delivery")
					if deliveryID == "" {
						deliveryID = "replay-" + uuid.NewString()
					}

					client := &clients.ConfigClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name), WebhookSecret: secret}
					response, err := client.SendWebhook(ctx, cCtx.String("event"), deliveryID, body)
					if err != nil {
						return err
					}
					return printJSON(response)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
