// Package uart implements UART sessions multiplexed over shared devices.
//
// A Session owns a fixed-size IOBuffer and a Driver handle obtained from a
// DriverFactory. Clients move bytes between the buffer and the device with
// Read and Write, and subscribe to availability notifications with
// OnReadAvailable. Sessions may optionally run a VT100 cursor-position
// handshake at construction to learn the size of the attached terminal.
//
// The Resolver turns a session label into Params using a policy.Table,
// enforces per-device access through Claims and keeps live sessions in a
// Registry.
//
// Example Usage:
//
//	resolver := uart.NewResolver(factory, table, logger).WithMetrics(metrics)
//	sess, err := resolver.Create(ctx, uart.Request{Label: "console"})
//	if errors.Is(err, uart.ErrUnavailable) {
//		// rejected by policy
//	}
//	n := sess.Read(sess.Dataspace().Cap())
//	data := sess.Dataspace().Bytes(n)
package uart
