// Command blobio streams, lists, copies and deletes objects through any blobio
// backend.
//
//	blobio --backend=s3 ls azfs://default/my-bucket/logs/
//	blobio --backend=azure --azure-account-key=$KEY cat azfs://acct/c/data.bin
//	tar c . | blobio --backend=minio put azfs://local/backups/site.tar
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().rootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "blobio:", err)
		os.Exit(1)
	}
}
