// Package wire implements the binary message codec spoken by Raptor devices.
//
// Messages use the protobuf wire format of the raptor.v1 package so the host
// interoperates with nanopb firmware. The layouts are written by hand with
// protowire; no generated code is involved. Decoding is strict: a message must
// carry its mandatory field, and unknown fields or wire types mean the bytes
// are not of the expected kind.
package wire
