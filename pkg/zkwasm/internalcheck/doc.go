// Package internalcheck holds static policy tests over the module's own
// source. It has no exported API.
//
// The tests load the packages that handle key material and fail on:
//   - == or != between byte slices or arrays (use crypto/subtle)
//   - %x or %X in format strings (keys must never be hex-dumped into errors
//     or logs; the encoders use encoding/hex explicitly)
package internalcheck
