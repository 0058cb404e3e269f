//go:build parallel

package zkwasm

const parallelBuild = true
