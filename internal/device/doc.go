// Package device contains the driver layer for pixel display hardware.
//
// A Driver owns one device's framebuffer and mediates all hardware I/O:
// scenes draw onto the Canvas half of the interface, the scheduler ships
// frames with Push and issues control operations (brightness, display
// power, reset). Two real transports exist: HTTPPanel for panels with a
// JSON command API on the local network, and BusPanel for matrices
// reached through the message bus. Mock is the in-memory stand-in used
// by tests and by deployments where the hardware is not present yet.
//
// Capabilities describe what a device can do; drivers consult them to
// decide between doing the work and returning ErrUnsupported. Profiles
// bind a device type key (pixoo64, matrix32x8) to its capabilities and
// transport, and Factory turns a type key plus driver kind into a
// ready-to-init Driver.
package device
