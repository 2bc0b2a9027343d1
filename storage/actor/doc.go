// Package actor hosts primitives behind a mailbox.
//
// Spawn starts one goroutine that owns a value and applies messages to it
// strictly in arrival order. Ask and Send suspend the caller until the
// message has been handled. Two operations against the same primitive never
// interleave, while distinct actors run concurrently.
//
// Registrar, Authorizer and Issuer wrap the storage interfaces so a flow can
// use a bridged primitive exactly like an in-process one:
//
//	codes := actor.NewAuthorizer(memory.NewAuthMap(nil), actor.WithInstrumentation(inst))
//	defer codes.Stop()
//
// Once an actor is stopped every call fails with ErrMailboxClosed; the flows
// report that as server_error. No call is retried.
package actor
