// Package azure implements blobio.Client on Azure Blob Storage.
//
// Writes use the block blob protocol: StageBlock per block and a single
// CommitBlockList on Finish. Copies are server-side and polled until they
// complete. The account of each locator selects the SDK client, so a single
// Store can serve several storage accounts.
package azure
