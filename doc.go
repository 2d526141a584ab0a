// Package retainstate implements a retained-value registry: values produced by live
// consumers are snapshotted under string keys before a destructive recreation and
// handed back, at most once each, on the next pass. Values nobody reclaims within one
// settle cycle are forgotten.
//
// Components:
//   - Registry: key -> ordered providers (live registrations) and key -> ordered
//     retained values (saved, not yet consumed).
//   - Host: owns one Registry across recreations and drives the attach / settle /
//     detach cycle through a FrameScheduler and a CanRetainChecker.
//   - Slot[T]: typed consumer site (consume-or-init, register, dispose).
//   - snapshot.Persister: optional durable copy of the retained map (Codec + Provider),
//     fenced by per-host epochs so a stale snapshot never leaks into a new instance.
//
// Ordering:
//
//	several entries under one key are saved in registration order and consumed FIFO,
//	so siblings sharing a key get their own values back when they re-attach in order.
//
// Cycle:
//
//	att, _ := host.Attach()         // FRESH -> ATTACHED; settle sweep scheduled
//	s, _   := retainstate.Retain(host, "list/item", fresh)
//	...                              // first frame completes -> ForgetUnclaimedValues
//	att.OnDetachedAfterUse()         // checker says retain -> SaveAll
package retainstate
