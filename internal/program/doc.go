// Package program parses the small instruction language executed by the
// proving engine.
//
// A program is a sequence of statements:
//
//	program hello.zk;
//
//	function main:
//	    input r0 as field.private;
//	    input r1 as u64.public;
//	    add r0 7field into r2;
//	    hash.mimc r2 r0 into r3;
//	    assert.lte r1 100u64;
//	    output r3 as field.public;
//
// Parsing is pure and never touches cryptographic code, which lets the
// binding layer reject malformed programs and inputs before anything is
// handed to the engine.
package program
