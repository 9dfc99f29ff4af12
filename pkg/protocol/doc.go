// Package protocol defines the message model shared by every dialect of the
// device gateway protocol: outbound requests, inbound responses, and the
// device-side data carried alongside them.
//
// Requests and responses are plain values. Encoding and decoding live in
// package codec.
package protocol
