// Package interfaces defines core interfaces and types for the template
// synchronization service, separating interface definitions from implementations.
//
// # Configuration Types
//
// RepoConfig: The freshly fetched configuration document of a repository. It
// declares SourceSets (named glob groups a producer publishes) and ConfigSets
// (subscription references a consumer wants, "owner/repo/group").
//
// FullConfig: The durable record of a RepoConfig with the repository id and
// name attached, as kept by a ConfigStore.
//
// # Event and Plan Types
//
// PushEvent: The push delivery fields the planner consumes.
//
// Plan: Which source sets a push affected, the paths that matched, and the
// subscriber repositories that must receive the change. A PlanExecutor
// carries it out.
//
// # Backend Interfaces
//
// ConfigStore: Keyed storage of FullConfig records with a secondary query by
// subscription reference (memory, file, redis, bolt, S3).
//
// SecretProvider: Resolves named secrets (environment, files, Vault, AWS
// Secrets Manager).
//
// # Error Types
//
//   - ErrConfigNotFound: No record stored for the repository
//   - ErrBackendUnavailable: Backend is not accessible
//   - ErrInvalidLocationURI: Backend location URI is malformed
//   - ErrSecretNotFound: Named secret does not exist
package interfaces
