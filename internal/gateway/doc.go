// Package gateway defines the decoded boundary to the broker gateway
// process: the inbound event union, the outbound command union, and the
// Transport that carries them. Wire encoding/decoding lives behind the
// Transport implementation; the rest of the adapter only sees decoded
// values.
package gateway
