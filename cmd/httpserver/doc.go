// Package main (cmd/httpserver) runs the templatizer webhook server.
//
// The server receives GitHub App webhook deliveries, verifies their
// X-Hub-Signature, and for pushes to a repository's default branch fetches
// the repository's .github/templatizer.yml (falling back to the
// organization's .github repository), stores it, and plans which subscriber
// repositories must receive the changed template files.
//
// The GitHub App private key and the webhook secret are read from the secret
// provider selected with --secrets. With the default env:// provider they are
// TEMPLATIZER_GITHUB_KEY and TEMPLATIZER_WEBHOOK_SECRET.
//
// Every flag can also be set through its TEMPLATIZER_* environment variable.
//
// Example usage with a Redis store mirrored to S3:
//
//	templatizer-server --app-id=123456 \
//	    --listen-addr=0.0.0.0:8080 \
//	    --secrets=vault://vault.internal:8200/secret/templatizer \
//	    --store=redis://redis.internal:6379/0 \
//	    --store=s3://templatizer-configs/prod?region=eu-west-1
package main
