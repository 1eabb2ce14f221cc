// Package maybenot implements a per-connection traffic analysis defense
// engine: a set of independent padding machines, each a small probabilistic
// state machine, that observe packet and timer events on a tunneled
// connection and emit padding and blocking actions to obscure its traffic
// pattern.
//
// The core abstraction is the Framework, which runs a fixed set of Machine
// values for the lifetime of one connection. Machines never talk to the
// network directly; they only see TriggerEvent batches fed in by the host
// and return Actions for the host to carry out.
//
// Basic usage:
//
//	m, err := maybenot.NewMachine(maybenot.Machine{
//		MaxPaddingFrac: 0.5,
//		States: []maybenot.State{ /* ... */ },
//	})
//	fw, err := maybenot.NewFramework([]*maybenot.Machine{m}, 0.5, 0.5, time.Now(), src)
//
//	actions := fw.TriggerEvents([]maybenot.TriggerEvent{
//		maybenot.NewEvent(maybenot.NormalSent),
//	}, time.Now())
//	for _, a := range actions {
//		// arm timers, send padding, block outgoing traffic, ...
//	}
//
// Supporting packages:
//   - dist samples the parametric distributions used for every timeout,
//     duration and limit a machine declares.
//   - rng supplies the random sources the framework draws from: a seedable
//     generator for deterministic simulation, and a cryptographically
//     reseeded one for production.
//   - wire serializes and deserializes machines for transport between peers.
//   - simulator replays a packet trace through two Framework instances
//     connected by a synthetic network, for evaluating a defense's effect on
//     traffic shape without a live connection.
//   - hostutil shows a concrete way to wire Action timeouts to Clock/Timer.
package maybenot
