// Package gotrue implements the coachgate.IdentityGateway contract over a
// GoTrue-style hosted identity provider.
//
// Clients come in three variants that share every operation and differ only
// in cookie context and key policy: server (privileged key, trusted contexts
// only), request (anon key, mutations returned as values), and browser (anon
// key, cookie jar on the transport). The request and browser constructors
// refuse service-role keys outright so a privileged key can never reach a
// client-facing code path.
package gotrue
