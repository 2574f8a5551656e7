// Package testutil provides testing utilities for blobio.
//
// This package is intended for use in tests only. It provides deterministic
// random payloads and a fault-injecting Client wrapper.
//
// # Random payloads
//
//	rng := testutil.NewRNG(seed)
//	data := rng.Bytes(8<<20 + 2000)
//	for _, chunk := range rng.Chunks(data, 64<<10) {
//	    w.Write(chunk)
//	}
//
// # Fault injection
//
//	fc := testutil.NewFaultClient(memory.New())
//	fc.FailNext(testutil.OpDownloadRange, blobio.Transient(errors.New("reset")))
//	// ... the first range read fails, the retry succeeds ...
//	assert.Equal(t, 2, fc.Calls(testutil.OpDownloadRange))
package testutil
