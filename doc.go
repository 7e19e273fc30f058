// Package authcore is a tenant-scoped authentication and token-lifecycle
// engine. It verifies credentials against a pluggable store, issues signed
// access tokens and opaque rotating refresh tokens, blacklists revoked
// access tokens in a shared cache, and manages single-use password-reset
// and email-verification tokens.
//
// The package holds no global state. Construct the services with their
// collaborators:
//
//	manager, _ := jwt.NewManager(jwt.Config{Secret: secret, AccessTTL: 15 * time.Minute})
//	hasher, _ := password.NewHasher(password.DefaultConfig())
//	tokens := authcore.NewTokenService(manager, store, cache, cfg, log, m)
//	auth := authcore.NewAuthService(store, tokens, hasher, mailer, log, m)
//
// Stores are interfaces: pgstore provides the PostgreSQL implementation,
// MemoryStore backs tests and development. httpapi and middleware expose
// the flows over HTTP.
package authcore
