package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lan-gateway/gateway/internal/updater"
)

func NewUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Application update tools",
	}
	cmd.AddCommand(newUpdateDownloadCommand())
	return cmd
}

func newUpdateDownloadCommand() *cobra.Command {
	var (
		fileName string
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download an update package into the data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, logger, err := loadRuntime()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d := updater.New(logger)
			done := make(chan updater.Result, 1)
			go func() {
				done <- d.Download(ctx, args[0], env.DataDir, fileName)
			}()

			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case res := <-done:
					if !res.Success {
						return errors.New(res.Error)
					}
					fmt.Fprintln(cmd.OutOrStdout(), res.LocalPath)
					return nil
				case <-ticker.C:
					if quiet {
						continue
					}
					p := d.Progress()
					fmt.Fprintf(cmd.ErrOrStderr(), "%3d%%  %d/%d bytes\n", p.Percent, p.BytesDownloaded, p.TotalBytes)
				}
			}
		},
	}

	cmd.Flags().StringVar(&fileName, "name", "", "file name under <data dir>/updates (default: from URL)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}
