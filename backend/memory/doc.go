// Package memory provides an in-memory blobio.Client.
//
// It implements block staging with CRC32C verification at commit time,
// paginated listing and server-side copy, which makes it suitable for tests and
// for local tooling that wants the full streaming pipeline without a network.
//
//	client := memory.New(memory.WithPageSize(2))
//	s := blobio.New(client)
package memory
