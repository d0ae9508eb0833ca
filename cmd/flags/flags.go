package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/templatizer-backend/api"
	"github.com/ruteri/templatizer-backend/common"
	"github.com/ruteri/templatizer-backend/credentials"
	"github.com/ruteri/templatizer-backend/githubapi"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             60 * time.Second,
		DeliveryTimeout:          cCtx.Duration(DeliveryTimeoutFlag.Name),
	}
}

var ServerAddrFlag = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:8080",
	Usage:   "templatizer server address to request",
	EnvVars: []string{"TEMPLATIZER_SERVER_ADDR"},
}

var SecretsURIFlag = &cli.StringFlag{
	Name:    "secrets",
	Value:   "env://",
	Usage:   "secret provider URI: env://?prefix=, file:///dir, vault://host:port/mount/path or awssm://region?prefix=",
	EnvVars: []string{"TEMPLATIZER_SECRETS"},
}

var WebhookSecretNameFlag = &cli.StringFlag{
	Name:    "webhook-secret-name",
	Value:   credentials.DefaultWebhookSecretSecret,
	Usage:   "name of the webhook secret in the secret provider",
	EnvVars: []string{"TEMPLATIZER_WEBHOOK_SECRET_NAME"},
}

var GitHubAPIFlag = &cli.StringFlag{
	Name:    "github-api",
	Value:   githubapi.DefaultBaseURL,
	Usage:   "GitHub REST API base URL, e.g. https://github.example.com/api/v3/ for GitHub Enterprise",
	EnvVars: []string{"TEMPLATIZER_GITHUB_API"},
}

var DeliveryTimeoutFlag = &cli.DurationFlag{
	Name:    "delivery-timeout",
	Value:   30 * time.Second,
	Usage:   "time limit for the outbound calls made while handling one webhook delivery",
	EnvVars: []string{"TEMPLATIZER_DELIVERY_TIMEOUT"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: []string{"TEMPLATIZER_METRICS_ADDR"},
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
