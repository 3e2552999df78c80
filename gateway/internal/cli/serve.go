package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lan-gateway/gateway/internal/backend"
	"lan-gateway/gateway/internal/config"
	"lan-gateway/gateway/internal/credstore"
	"lan-gateway/gateway/internal/infra"
	"lan-gateway/gateway/internal/repository"
	"lan-gateway/gateway/internal/server"
)

type serveOptions struct {
	ServersFile string
	AssetsDir   string
	NoAccessLog bool
}

func NewServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the configured LAN listeners and wait for a signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if opts.ServersFile != "" {
				env.ServersFile = opts.ServersFile
			}
			if opts.AssetsDir != "" {
				env.AssetsDir = opts.AssetsDir
			}

			configs, err := config.LoadServers(env.ServersFile)
			if err != nil {
				return err
			}

			store := credstore.New(env.DataDir, logger)
			authorized := store.ActiveIPs()
			if len(authorized) == 0 {
				logger.Warn("allow-list is empty; restricted listeners will refuse every client", "file", store.Path())
			}

			mgrOpts := server.Options{
				AssetsDir: env.AssetsDir,
				Logger:    logger,
			}
			if env.BackendConfigured() {
				mgrOpts.Backend = backend.NewClient(env.BackendURL, env.BackendKey)
			}
			if !opts.NoAccessLog {
				db, err := infra.OpenAccessLog(env.DataDir)
				if err != nil {
					return fmt.Errorf("open access log: %w", err)
				}
				defer infra.CloseDB(db)
				mgrOpts.Recorder = repository.NewGormRepository(db)
			}

			mgr := server.NewManager(mgrOpts)
			res, err := mgr.Start(configs, authorized)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range res.Started {
				fmt.Fprintf(out, "%-10s %-20s %s\n", s.Mode, s.Name, s.URL)
			}
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed: port %d (%s): %s\n", e.Port, e.Name, e.Error)
			}
			if len(res.Started) == 0 {
				return fmt.Errorf("no listener could be started")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(out, "gateway is running; press Ctrl+C to stop")
			<-ctx.Done()

			mgr.Stop(context.Background())
			fmt.Fprintln(out, "gateway stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ServersFile, "servers", "", "listener config file (overrides GATEWAY_SERVERS_FILE)")
	cmd.Flags().StringVar(&opts.AssetsDir, "assets", "", "web app bundle directory (overrides GATEWAY_ASSETS_DIR)")
	cmd.Flags().BoolVar(&opts.NoAccessLog, "no-access-log", false, "do not record authorization decisions")

	return cmd
}
