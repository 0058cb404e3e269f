// Package keystore caches circuit key pairs per program function and tracks
// which program source each cached program ID is bound to.
//
// Keys live in memory and, when a directory is configured, in lz4-compressed
// files so that later sessions skip the Groth16 setup.
package keystore
