// Package controller implements the attendance processing state machine.
//
// The controller is the heart of the device: it reacts to a card-present
// signal, resolves the bearer's identity, timestamps the event, and durably
// records it to the remote store when online or the offline queue when not,
// draining the queue once connectivity returns.
//
// ARCHITECTURE:
//
// Cooperative Single-Threaded Loop:
// All control state is owned by one loop. Each Step performs one iteration:
//  1. remote client Service (background transmission progress)
//  2. identity inbox drain (push updates become loop-side mutations)
//  3. stuck-state watchdog (precedes the handler, so a hung state is
//     recoverable on the first iteration past its deadline)
//  4. the current state's handler
//  5. feedback delivery and identity-cache flush
//
// States:
//
//	Initialize -> Idle -> ProcessCard -> {UploadData | QueueData} -> Idle
//
// plus SyncQueue, reachable only from Idle when the queue is non-empty,
// the system is online, and no upload is in flight. Initialize and Idle are
// the only states allowed to persist indefinitely.
//
// Nothing in a state handler blocks or sleeps. Card reads, persistence, and
// sends are request/poll pairs; upload confirmation is observed by polling
// in Idle. At most one upload is tracked at a time - that tracker is the
// sole serialization point, so the queue and the identity cache need no
// locking.
package controller
