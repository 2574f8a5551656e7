package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/blobio/resource"
)

func (a *app) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls PREFIX",
		Short: "List objects under a prefix with their sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sizes, err := a.storage.ListPrefix(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			for _, p := range slices.Sorted(maps.Keys(sizes)) {
				fmt.Fprintf(cmd.OutOrStdout(), "%12d  %s\n", sizes[p], p)
			}
			return nil
		},
	}
}

func (a *app) catCmd() *cobra.Command {
	var offset, length int64

	cmd := &cobra.Command{
		Use:   "cat PATH",
		Short: "Write an object to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			r, err := a.storage.OpenReader(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			if offset > 0 {
				if _, err := r.Seek(offset, io.SeekStart); err != nil {
					return err
				}
			}

			var src io.Reader = r
			if length >= 0 {
				src = io.LimitReader(r, length)
			}

			_, err = io.Copy(resource.NewRateLimitedWriter(ctx, cmd.OutOrStdout(), a.resources), src)
			return err
		},
	}

	cmd.Flags().Int64Var(&offset, "offset", 0, "Start reading at this byte")
	cmd.Flags().Int64Var(&length, "length", -1, "Read at most this many bytes (-1 = to the end)")

	return cmd
}

func (a *app) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put PATH",
		Short: "Upload stdin to an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start := time.Now()

			w, err := a.storage.Create(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			n, err := io.Copy(w, resource.NewRateLimitedReader(ctx, cmd.InOrStdin(), a.resources))
			if err != nil {
				return err
			}
			if err := w.Finish(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "uploaded %d bytes to %s in %s\n", n, args[0], formatTime(time.Since(start)))
			return nil
		},
	}
}

func (a *app) cpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cp SRC DST",
		Short: "Copy an object server-side",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.storage.Copy(cmd.Context(), args[0], args[1])
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm PATH...",
		Short: "Delete objects; absent objects are not an error",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.storage.Delete(cmd.Context(), args[0])
			}

			failed := 0
			for _, r := range a.storage.DeleteBatch(cmd.Context(), args) {
				if r.Err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), r.Err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deletes failed", failed, len(args))
			}
			return nil
		},
	}
}

func (a *app) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat PATH",
		Short: "Print the size of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := a.storage.Size(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", args[0], size)
			return nil
		},
	}
}

func (a *app) existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists PATH...",
		Short: "Report whether objects exist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var firstErr error
			for _, r := range a.storage.ExistsBatch(cmd.Context(), args) {
				if r.Err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), r.Err)
					if firstErr == nil {
						firstErr = r.Err
					}
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%t\n", r.Path, r.Exists)
			}
			return firstErr
		},
	}
}
