// Package coachgate implements the authentication core of a health-coaching
// web application: request-scoped session synchronization, route guarding,
// and a two-store signup saga.
//
// Session synchronization:
//   - Synchronizer runs before any routing decision. It asks the identity
//     gateway to validate or refresh the caller's token pair and captures the
//     resulting cookie mutations as a MutationLog value. Whoever produces the
//     final response, guard redirects included, must flush that log; skipping
//     it desynchronizes client and server session state on the next request.
//   - Guard consults a static table of protected path prefixes strictly after
//     the synchronizer. SessionMiddleware wires both over go-router contexts.
//
// Signup saga:
//   - SignupHandler creates an identity at the provider, then a profile row
//     keyed by the identity id. The two stores are not transactionally
//     joined; on a profile failure the handler attempts exactly one
//     compensating identity delete. A failed compensation surfaces as a
//     distinct CompensationError and is reported to a ReconciliationSink, so
//     orphaned identities never masquerade as ordinary validation errors.
//
// Gateways:
//   - provider/gotrue speaks the hosted identity provider's REST protocol in
//     three variants (server, request, browser) that differ only in how they
//     handle cookie context and which API key they may carry.
//   - LocalGateway backs the same contract with a bun table for development
//     and tests.
//
// The feed subpackage maintains table-scoped change-feed subscriptions with
// explicit cancellation.
package coachgate
