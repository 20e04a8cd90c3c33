// Package session provides per-session state for automation clients.
//
// A session is created by the new-session command and lives until the
// client deletes it or the idle reaper reclaims it. It carries:
//   - Identity and timing metadata (ID, CreatedAt, LastSeen)
//   - A free-form storage map shared by endpoint handlers
//   - A single-slot confirmation mailbox (Idle | Awaiting)
//   - An outbound command channel read by the browser runtime
//
// Confirmation Mailbox:
//
// At most one confirmation is pending per session. Staging a second one
// before the first is cleared overwrites it and reports ErrProtocolViolation
// so the caller can log it; confirmations never queue.
//
// Concurrency:
//
// Field access is guarded, but request ordering within a session is the
// automation client's responsibility (one in-flight command per session).
//
// Example Usage:
//
//	store := session.NewStore(64)
//	sess := store.Create(caps)
//	err := sess.Stage(owner, types.Confirmation{Cmd: dto, Data: "forward complete"})
//	conf, ok := sess.Clear()
package session
