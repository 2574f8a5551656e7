// Package hash provides CRC32-Castagnoli checksums for block integrity.
//
// Block uploads to S3-compatible stores carry a CRC32C so the service rejects
// corrupted parts; the in-memory backend records the same checksum per staged
// block and verifies it at commit.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
