package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/logger"
	"github.com/rileyhilliard/gorgon/internal/metrics"
	"github.com/rileyhilliard/gorgon/internal/topology"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// DefaultMetricsAddr is where serve listens when --metrics-addr is not given.
const DefaultMetricsAddr = ":9090"

const (
	shutdownTimeout      = 5 * time.Second
	defaultServeInterval = 5 * time.Second
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr     string
	Interval time.Duration // zero uses hub.interval from the config
}

var serveOpts ServeOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub continuously and export Prometheus metrics",
	Long: `Run hub cycles every interval until interrupted and serve cycle statistics
and the latest readings of every crab on /metrics.

Partially failed cycles are counted and the loop keeps going. An aborted
cycle stops the hub and exits non-zero.

Examples:
  gorgon serve
  gorgon serve --metrics-addr 127.0.0.1:9100 --interval 10s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand(cmd.Context(), cmd.OutOrStdout(), serveOpts)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.Addr, "metrics-addr", DefaultMetricsAddr, "address for the /metrics endpoint")
	serveCmd.Flags().DurationVar(&serveOpts.Interval, "interval", 0, "hub cycle interval (default: hub.interval)")
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(ctx context.Context, w io.Writer, opts ServeOptions, extra ...topology.Option) error {
	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't listen on %s", opts.Addr),
			"Pick a free address with --metrics-addr.")
	}
	return serve(ctx, w, ln, opts.Interval, extra...)
}

// serve runs the hub loop and the metrics server on ln until ctx is done
// or either of them fails. ln is closed on return.
func serve(ctx context.Context, w io.Writer, ln net.Listener, interval time.Duration, extra ...topology.Option) error {
	collector, err := metrics.New(nil)
	if err != nil {
		_ = ln.Close()
		return err
	}

	cfg, stack, err := openStack(append([]topology.Option{topology.WithObserver(collector)}, extra...)...)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer stack.Close()

	if interval <= 0 {
		interval = cfg.Hub.Interval
	}
	if interval <= 0 {
		interval = defaultServeInterval
	}

	log := logger.NewEnvLogger("serve")
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Fprintf(w, "Serving metrics on http://%s/metrics (%d crabs, every %s). Press Ctrl+C to stop.\n",
		ln.Addr(), stack.Hub.Len(), interval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Metrics server on %s failed", ln.Addr()),
				"")
		}
		return nil
	})
	g.Go(func() error {
		return stack.Hub.Run(gctx, interval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown: %v", err)
		}
		return nil
	})

	err = g.Wait()
	if err == nil {
		fmt.Fprintln(w, "\nStopped.")
	}
	return err
}
