package reactor

// MaxAcceptBatch bounds how many connections an acceptor actor may pull
// off a listening socket within a single Execute call before yielding
// back to the reactor, spec 4.4's "accept fan-out: an acceptor may
// accept at most 10 connections per wake-up before rescheduling, so one
// busy listener cannot starve the other hosted actors." An acceptor that
// still has a backlog after MaxAcceptBatch accepts should return
// ActionRescheduleNow so it gets a fresh turn promptly rather than
// ActionWaitForEvents, which would make it wait for another readiness
// edge that may not come until the next unrelated connection arrives.
const MaxAcceptBatch = 10
