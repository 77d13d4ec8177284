package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/satproc/warpinit/internal/config"
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	cctx := &context{manifestPath: manifestPathFromEnv()}

	root := &cobra.Command{
		Use:   "warpinit",
		Short: "Init shim supervising the warper worker process",
	}

	root.PersistentFlags().StringVar(&cctx.manifestPath, "manifest", cctx.manifestPath, "Path to the supervisor manifest")
	root.PersistentFlags().StringVar(&cctx.envFile, "env-file", "", "Override the environment file path")
	root.PersistentFlags().StringVar(&cctx.workerConfig, "worker-config", "", "Override the worker configuration file path")

	root.AddCommand(newRunCmd(cctx))
	root.AddCommand(newConfigCmd(cctx))
	root.AddCommand(newVersionCmd())

	// The container entrypoint invokes warpinit with no arguments; the bare
	// command supervises the worker exactly as `warpinit run` does.
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return cctx.runSupervisor(cmd, runOptions{})
	}

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, cctx
}

// Execute runs the CLI entrypoint. The process exit code reflects the
// worker's exit code once supervision has finished.
func Execute() {
	root, cctx := newRootCommand()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if code := cctx.workerExitCode(); code != 0 {
		os.Exit(code)
	}
}

type context struct {
	manifestPath string
	envFile      string
	workerConfig string

	mu       sync.Mutex
	exitCode int
}

func (c *context) loadManifest() (*config.Manifest, error) {
	man, err := config.LoadOrDefault(c.manifestPath)
	if err != nil {
		return nil, err
	}
	if c.envFile != "" {
		man.Worker.EnvFile = c.envFile
	}
	if c.workerConfig != "" {
		man.Worker.ConfigFile = c.workerConfig
	}
	return man, nil
}

func (c *context) setWorkerExitCode(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exitCode = code
}

func (c *context) workerExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}

func manifestPathFromEnv() string {
	if path := os.Getenv("WARPINIT_MANIFEST"); path != "" {
		return path
	}
	dir := os.Getenv("WARPINIT_CONFIG_DIR")
	if dir == "" {
		dir = config.DefaultConfigDir
	}
	return filepath.Join(dir, "warpinit.yaml")
}
