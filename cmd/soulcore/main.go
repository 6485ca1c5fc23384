// Package main provides the soulcore command line: offline embeddings, claim
// verification and knowledge routing against a soul directory, plus the
// HTTP sidecar used by the desktop shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/entrhq/soulcore/pkg/config"
	"github.com/entrhq/soulcore/pkg/core"
	"github.com/entrhq/soulcore/pkg/logging"
)

const version = "0.1.0"

// app holds the global flags and the hooks tests replace.
type app struct {
	soulPath   string
	configFile string
	verbose    bool

	environ   []string
	newLogger func(component string) *logging.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:     "soulcore",
		Short:   "Memory routing, claim verification and embeddings for a soul directory",
		Version: version,
		Long: `soulcore works on a soul directory: the markdown files a companion keeps
about its user.

It files interests and personal facts learned in conversation into the
right documents, checks generated replies against stored memories, and
produces text embeddings with an offline fallback.

Configuration is read from <soul>/soulcore.yaml, <soul>/.env and the
environment (SOUL_PATH, SOUL_LANGUAGE, OPENAI_API_KEY, GEMINI_API_KEY,
SOUL_VERIFY_CLAIMS, SOULCORE_ADDR, SOULCORE_LOG_LEVEL).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.soulPath, "soul", "s", "", "soul directory (or set SOUL_PATH)")
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default <soul>/soulcore.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newEmbedCmd(a),
		newSimilarityCmd(a),
		newVerifyCmd(a),
		newRouteCmd(a),
		newRememberCmd(a),
		newClustersCmd(a),
		newServeCmd(a),
	)
	return root
}

// loadConfig resolves the configuration and applies the logging settings.
func (a *app) loadConfig(soulOptional bool) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile:   a.configFile,
		SoulPath:     a.soulPath,
		Environ:      a.environ,
		SoulOptional: soulOptional,
	})
	if err != nil {
		return nil, err
	}
	lvl := cfg.Logging.Level
	if a.verbose {
		lvl = "debug"
	}
	if err := logging.Configure(cfg.Logging.Dir, lvl); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openCore loads the configuration and wires the components. The caller
// closes the returned Core.
func (a *app) openCore(ctx context.Context) (*core.Core, error) {
	cfg, err := a.loadConfig(false)
	if err != nil {
		return nil, err
	}
	var opts []core.Option
	if a.newLogger != nil {
		opts = append(opts, core.WithLoggerFactory(a.newLogger))
	}
	return core.New(ctx, cfg, opts...)
}

func (a *app) logger(component string) *logging.Logger {
	if a.newLogger != nil {
		return a.newLogger(component)
	}
	// NewLogger falls back to stderr on error.
	l, _ := logging.NewLogger(component)
	return l
}
