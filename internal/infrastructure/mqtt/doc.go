// Package mqtt wraps the Eclipse Paho MQTT client for pixood.
//
// It provides connection lifecycle management with Last Will and Testament,
// automatic subscription restoration on reconnect, payload size policy
// enforcement, and topic builders for the pixoo/# hierarchy.
package mqtt
