package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/issueradar/issueradar/internal/digest"
	"github.com/issueradar/issueradar/internal/log"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/server"
)

type serveOptions struct {
	addr      string
	logFormat string
}

// NewCmdServe creates the serve command.
func NewCmdServe(opts *Options) *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve the JSON API under /api for the local user until interrupted.

Endpoints: /api/project, /api/post, /api/digest, /api/digest/generate,
/api/issues and /api/analyse, plus /healthz.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, o, opts)
		},
	}

	cmd.Flags().StringVar(&o.addr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().StringVar(&o.logFormat, "log-format", "text", "Log format (text, json)")

	return cmd
}

func runServe(cmd *cobra.Command, o serveOptions, opts *Options) error {
	format := log.Format(o.logFormat)
	if format != log.FormatText && format != log.FormatJSON {
		return fmt.Errorf("invalid log format %q: use text or json", o.logFormat)
	}
	// Requests are logged at info level.
	log.InitializeWithFormat(max(opts.Verbosity, log.LevelInfo), os.Stderr, format)

	profiler := NewProfiler(opts.CPUProfile, opts.MemProfile, opts.Trace)
	if err := profiler.Start(); err != nil {
		return err
	}
	defer profiler.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.newServices(ctx)
	if err != nil {
		return err
	}

	var completer digest.Completer
	llmCompleter, release, err := newCompleter(ctx, a.cfg)
	if err != nil {
		log.Warn("model unavailable; digest generation and analyse will fail", "error", err)
		completer = unavailableCompleter{err: err}
	} else {
		defer release()
		completer = llmCompleter
	}

	composer := digest.NewComposer(svc.issues, completer, a.store, a.digestOptions(svc.cache, nil))
	srv := server.New(a.store, svc.issues, composer, a.user.ID)

	addr := o.addr
	if addr == "" {
		addr = a.cfg.GetServerAddr()
	}
	if err := srv.Listen(addr); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl+C to stop)\n", srv.Addr())

	return srv.Serve(ctx)
}

// unavailableCompleter fails every request with the error that prevented the
// model client from being created.
type unavailableCompleter struct {
	err error
}

func (u unavailableCompleter) Complete(context.Context, []model.ChatMessage) (*model.Completion, error) {
	return nil, u.err
}
