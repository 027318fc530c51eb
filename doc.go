// Package accounts implements user accounts with two token keyspaces, one
// for account holders and one for administrators, plus the moderation
// operations administrators run against them.
//
// User lifecycle:
//   - Users carry a UserStatus (active, inactive, banned) persisted via Bun.
//     UserStateMachine owns the transition graph, the ban bookkeeping and the
//     before/after hooks. After hooks run once the new status is stored.
//
// Live sessions:
//   - ModerationService reports committed bans, unbans and forced logouts to
//     a SessionNotifier. realtime.Bridge is the production notifier; it turns
//     them into events pushed over the WebSocket gateway.
//   - Clients that miss a push are still refused on their next request by
//     the middleware/statusgate package, which re-reads the stored status.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by Auther, the
//     services and the state machine. Errors are logged, never returned.
package accounts
