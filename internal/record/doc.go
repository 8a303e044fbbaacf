// Package record defines the fixed-size corpus record types and their
// codecs.
//
// A record is a password digest plus a signed 32-bit occurrence count;
// -1 marks an unknown count. Two corpus types exist: SHA1 (20-byte
// digest, 24-byte records) and NTLM (16-byte MD4 digest, 20-byte
// records). Records order and compare by digest alone; the count is
// payload, not identity.
//
// Codec converts between the three record forms:
//
//   - text: 40 (or 32) hex characters, case-insensitive on input and
//     uppercase on output, with an optional ":count" suffix
//   - binary: digest bytes followed by the count in little-endian
//   - in-memory: the SHA1/NTLM structs
//
// The upstream range API partitions each corpus by the first PrefixBits
// bits of the digest; the prefix helpers here render, parse and bound
// those partitions.
package record
