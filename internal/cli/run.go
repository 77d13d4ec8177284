package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/satproc/warpinit/internal/api/http"
	"github.com/satproc/warpinit/internal/cliutil"
	"github.com/satproc/warpinit/internal/config"
	"github.com/satproc/warpinit/internal/metrics"
	"github.com/satproc/warpinit/internal/procstat"
	"github.com/satproc/warpinit/internal/supervisor"
)

type runOptions struct {
	apiEnabled bool
	apiAddr    string
}

func newRunCmd(cctx *context) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch and supervise the warper worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cctx.runSupervisor(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.apiEnabled, "api", false, "Enable the admin HTTP API")
	cmd.Flags().StringVar(&opts.apiAddr, "api-addr", "", "Admin API listen address")
	return cmd
}

func (c *context) runSupervisor(cmd *cobra.Command, opts runOptions) error {
	man, err := c.loadManifest()
	if err != nil {
		return err
	}

	// The override file must exist before anything is spawned; absence is
	// fatal for the surrounding environment.
	overrides, err := config.LoadEnvFile(man.Worker.EnvFile)
	if err != nil {
		return err
	}
	env := config.BuildEnviron(os.Environ(), overrides, man.Worker.PathPrepend)

	stopSignal, err := config.ParseSignal(man.Worker.StopSignal)
	if err != nil {
		return err
	}

	events := make(chan supervisor.Event, 16)
	sup, err := supervisor.New(supervisor.Config{
		Command:    man.WorkerArgv(),
		Env:        env,
		Workdir:    man.Worker.Workdir,
		StopSignal: stopSignal,
		Events:     events,
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	logDone := make(chan struct{})
	go func() {
		defer close(logDone)
		enc := json.NewEncoder(cmd.ErrOrStderr())
		for evt := range events {
			cliutil.EncodeLogEvent(enc, cmd.ErrOrStderr(), evt)
		}
	}()

	termCh := make(chan os.Signal, 2)
	signal.Notify(termCh, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(termCh)

	runCtx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()

	sampler := &procstat.Sampler{}
	if man.Sampling.Interval.Duration > 0 {
		go sampler.Run(runCtx, sup.PID, man.Sampling.Interval.Duration)
	}

	if opts.apiEnabled || man.API.Enabled || apiEnabledFromEnv() {
		addr := opts.apiAddr
		if addr == "" {
			addr = man.API.Addr
		}
		server, err := httpapi.NewServer(httpapi.Config{
			Addr:     addr,
			Status:   statusFunc(sup, sampler),
			Gatherer: metrics.Registry(),
		})
		if err != nil {
			return err
		}
		go func() {
			if err := server.Run(runCtx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: admin api: %v\n", err)
			}
		}()
	}

	code, err := sup.Run(runCtx, termCh)
	close(events)
	<-logDone
	if err != nil {
		return err
	}
	c.setWorkerExitCode(code)
	return nil
}

func statusFunc(sup *supervisor.Supervisor, sampler *procstat.Sampler) func() httpapi.Status {
	return func() httpapi.Status {
		st := sup.Status()
		payload := httpapi.Status{
			State:     string(st.State),
			PID:       st.PID,
			StartedAt: st.StartedAt,
			ExitCode:  st.ExitCode,
		}
		if st.StartedAt != nil && st.ExitCode == nil {
			payload.UptimeSeconds = time.Since(*st.StartedAt).Seconds()
		}
		if sample, ok := sampler.Latest(); ok {
			payload.Resources = &httpapi.Resources{
				CPUPercent: sample.CPUPercent,
				RSSBytes:   sample.RSSBytes,
				SampledAt:  sample.SampledAt,
			}
		}
		return payload
	}
}

func apiEnabledFromEnv() bool {
	value := os.Getenv("WARPINIT_ENABLE_API")
	if value == "" {
		return false
	}
	enabled, err := strconv.ParseBool(value)
	return err == nil && enabled
}
