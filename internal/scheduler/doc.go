// Package scheduler drives the per-device frame loops.
//
// Each device owns a lane serialized by its own mutex: all renders,
// pushes and control operations for one device run in strict serial
// order, while distinct devices proceed in parallel. Scene switches
// follow a fixed protocol bracketed by switching/running events, with
// at most one pending switch coalesced behind an executing one (the
// newest request wins).
//
// Correctness rests on the per-device generation counter. Every switch,
// stop and reset increments it; every scheduled wakeup carries the
// generation it was armed under and is discarded if the counter moved.
// An outgoing scene therefore cannot push a frame after its switch
// completes, no matter when its timer fires.
package scheduler
