// Package scheduler paces universe transmission.
//
// DMX consumers expect a steady trickle of data, but producers burst:
// an animation engine emits frames at up to 43 fps while many nodes
// misbehave above a few updates per second. The pump in this package
// sits between the universe buffer and the transports and enforces two
// rules per universe:
//
//   - Rate limit: at most one transmit per MinInterval. Writes that
//     land inside the window are coalesced; the buffer always holds the
//     latest values, so the eventual flush is last-value-wins.
//   - Refresh: a full snapshot is retransmitted every RefreshEvery of
//     silence so nodes that blank their output on signal loss keep
//     their look. Recent writes suppress the refresh.
//
// Either interval can be zero to disable the behaviour.
package scheduler
