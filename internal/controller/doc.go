// Package controller wires the protocol transports, the universe
// buffer, the animation engine, and the external MQTT surface into one
// running engine.
//
// Data flows in two directions. Commands arrive on
// lumen/command/device/<name>, resolve against the device's current
// state, and start a transition in the animation engine; each frame is
// rendered through the fixture codec into the universe buffer, and the
// scheduler pump drains dirty universes out over Art-Net and sACN.
// Inbound DMX from either protocol lands in the same buffer under its
// transport's arbitration policy, and affected device states are
// decoded and published back out, coalesced to the configured rate.
//
// Settled states and universe snapshots persist to the statestore on
// every completed transition, and are restored before the transports
// start so outputs come back where they were.
package controller
