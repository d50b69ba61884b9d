package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quellstream/quell/internal/config"
	"github.com/quellstream/quell/internal/event"
	"github.com/quellstream/quell/internal/pipeline"
	"github.com/quellstream/quell/internal/script"
	"github.com/quellstream/quell/internal/source"
	"github.com/quellstream/quell/internal/statestore"
	"github.com/quellstream/quell/internal/value"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run events from a file or stdin through the script",
		Long: `Read raw data from a file (or stdin when no file is given), decode
it into events through the configured codec and preprocessors, run the
script over each event, and write results to stdout (out port) and
stderr (err port).

Example:
  quell run events.jsonl
  cat events.jsonl | quell run`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel := slog.LevelInfo
			if rootOpts.Verbose {
				logLevel = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: logLevel,
			}))

			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}

			input := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to open input", err)
				}
				defer f.Close()
				input = f
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runPipeline(ctx, cfg, log, input, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	return cmd
}

// runPipeline wires connector, manager and script together and runs the
// input to completion: feed, drain, stop.
func runPipeline(ctx context.Context, cfg *config.Config, log *slog.Logger, input io.Reader, stdout, stderr io.Writer) error {
	var store *statestore.Store
	state := value.Value(value.Object{})
	if cfg.State.Path != "" {
		st, err := statestore.Open(cfg.State.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open state store", err)
		}
		defer st.Close()
		if v, ok, err := st.Load(ctx, cfg.Connector.Alias); err != nil {
			return WrapExitError(ExitCommandError, "failed to load state", err)
		} else if ok {
			state = v
		}
		store = st
	}

	src := source.NewChannelSource(log, cfg.Connector.QueueSize)
	mgr := source.NewManager(source.Config{
		SourceID:      1,
		Alias:         cfg.Connector.Alias,
		Codec:         cfg.Connector.Codec,
		Preprocessors: cfg.Connector.Preprocessors,
		Log:           log,
	}, src)

	out := pipeline.NewAddr("stdout", cfg.Connector.QueueSize)
	errOut := pipeline.NewAddr("stderr", cfg.Connector.QueueSize)
	mgr.Send(source.MsgLink{Port: event.PortOut, Addr: out})
	mgr.Send(source.MsgLink{Port: event.PortErr, Addr: errOut})
	mgr.Send(source.MsgStart{})

	runner := &scriptRunner{
		scr: passthroughScript(),
		env: &script.Env{
			Context:        ctx,
			Log:            log,
			RecursionLimit: cfg.Script.RecursionLimit,
		},
		state: state,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(gctx) })
	g.Go(func() error { return feed(gctx, mgr, src, input) })
	g.Go(func() error { return consumeOut(gctx, mgr, out, runner, log, stdout) })
	g.Go(func() error { return consumeErr(gctx, mgr, errOut, stderr) })

	if err := g.Wait(); err != nil {
		return err
	}

	if store != nil {
		if err := store.Save(ctx, cfg.Connector.Alias, runner.state, uint64(time.Now().UnixNano())); err != nil {
			return WrapExitError(ExitCommandError, "failed to save state", err)
		}
	}
	return nil
}

// feed pushes the whole input into the source, then drives the drain
// handshake and the final stop.
func feed(ctx context.Context, mgr *source.Manager, src *source.ChannelSource, input io.Reader) error {
	reader := bufio.NewReader(input)
	buf := make([]byte, 64*1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if serr := src.Send(ctx, source.ReplyData{Data: chunk, Stream: event.DefaultStreamID}); serr != nil {
				return serr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read input", err)
		}
	}
	if err := src.Send(ctx, source.ReplyEndStream{Stream: event.DefaultStreamID}); err != nil {
		return err
	}

	done := make(chan struct{}, 1)
	mgr.Send(source.MsgDrain{Done: done})
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	reply := make(chan error, 1)
	mgr.Send(source.MsgStop{Reply: reply})
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consumeOut runs the script over out-port events and prints results.
// It acknowledges the drain signal and exits on it.
func consumeOut(ctx context.Context, mgr *source.Manager, a *pipeline.Addr, runner *scriptRunner, log *slog.Logger, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-a.Recv():
			switch msg.Kind {
			case pipeline.MsgSignal:
				if msg.Signal.Kind == pipeline.SignalDrain {
					mgr.Send(source.MsgCb{Action: event.CbDrained, ID: msg.Signal.ID})
					return nil
				}
			case pipeline.MsgEvent:
				ret, eventData, err := runner.run(msg.Event)
				if err != nil {
					log.Warn("script failed", "id", msg.Event.ID, "error", err)
					continue
				}
				switch ret.Kind {
				case script.ReturnEmit:
					if err := printValue(w, ret.Val); err != nil {
						return err
					}
				case script.ReturnEmitEvent:
					if err := printValue(w, eventData); err != nil {
						return err
					}
				case script.ReturnDrop:
				}
			}
		}
	}
}

// consumeErr prints err-port events. It acknowledges the drain signal
// and exits on it.
func consumeErr(ctx context.Context, mgr *source.Manager, a *pipeline.Addr, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-a.Recv():
			switch msg.Kind {
			case pipeline.MsgSignal:
				if msg.Signal.Kind == pipeline.SignalDrain {
					mgr.Send(source.MsgCb{Action: event.CbDrained, ID: msg.Signal.ID})
					return nil
				}
			case pipeline.MsgEvent:
				if err := printValue(w, msg.Event.Data); err != nil {
					return err
				}
			}
		}
	}
}

func printValue(w io.Writer, v value.Value) error {
	data, err := value.MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// scriptRunner holds the script and the state that persists across
// events.
type scriptRunner struct {
	scr   *script.Script
	env   *script.Env
	state value.Value
}

// run executes the script over one event. Returns the outcome and the
// event payload as the script left it.
func (r *scriptRunner) run(ev event.Event) (script.Return, value.Value, error) {
	ctx := r.scr.NewCtx(r.env, ev.Data, ev.Meta, r.state)
	ret, err := r.scr.Run(ctx)
	r.state = ctx.State
	if err != nil {
		return script.Return{}, nil, err
	}
	return ret, ctx.Event, nil
}

// passthroughScript re-emits every event unchanged.
func passthroughScript() *script.Script {
	return &script.Script{
		Name: "passthrough",
		Stmts: []script.Stmt{
			&script.Emit{Expr: &script.Path{Root: script.RootEvent}},
		},
	}
}
