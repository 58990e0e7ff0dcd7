// Package router is the MQTT command surface of the daemon.
//
// It accepts both command prefix families (pixoo/... and the legacy
// /home/pixoo/...), dispatches to the scheduler, and acknowledges every
// command on the per-device ok or error topic. In the other direction
// it subscribes to the store's event spine and publishes scene state
// transitions, retained scene/driver markers, frame acks and failure
// events.
package router
