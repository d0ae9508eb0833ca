// Package main (cmd/admin) implements the operator CLI for the templatizer service.
//
// Commands:
//
//	config       - Print the stored configuration of a repository (--repo-id)
//	subscribers  - List repositories subscribing to a source set (--ref owner/repo/group)
//	validate     - Parse a local templatizer.yml and print the decoded document
//	replay       - Sign a saved webhook payload and post it to the server
//
// config and subscribers query the server's read-only API by default. With
// --store they open the given config store URI directly, which is useful when
// the server is down:
//
//	templatizer-admin subscribers --ref acme/templates/ci --store redis://redis.internal:6379/0
//
// replay reads the webhook secret from the same secret provider the server
// uses, so a delivery can be re-run without the platform's redelivery UI:
//
//	templatizer-admin --server-addr=http://127.0.0.1:8080 replay --file push.json
package main
