/*
Package secrets implements the Secret Provider used by the credential manager
to obtain the GitHub App private key and the webhook shared secret.

Providers are selected by URI:

  - env://?prefix=TEMPLATIZER_ - environment variables; the secret name is
    upper-cased, dashes become underscores and the prefix is prepended
  - file:///etc/templatizer/secrets - one file per secret name in a directory
  - vault://vault.example.com:8200/secret/templatizer?tls=true - HashiCorp Vault KV v2,
    the secret value is read from the "value" key
  - awssm://us-east-1?prefix=templatizer/&endpoint=... - AWS Secrets Manager

Every provider reports a missing secret with an error wrapping
interfaces.ErrSecretNotFound. Values are returned as stored; trimming is
left to the caller.
*/
package secrets
