// Package cli holds the cobra commands of the cymatics binary.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Sonified/cymatics-ifft-simulation/internal/config"
	"github.com/Sonified/cymatics-ifft-simulation/internal/observability"
)

// globalFlags are the persistent flags shared by every command. A flag only
// overrides the configuration when it was set explicitly.
type globalFlags struct {
	configFile string
	audio      string
	mode       string
	debug      bool
	cpuProfile string
}

// state is what PersistentPreRunE hands to the subcommands.
type state struct {
	flags  globalFlags
	viper  *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:           "cymatics",
		Short:         "Audio driven water surface cymatics simulator.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.load(cmd)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVarP(&st.flags.configFile, "config", "c", "", "config file (YAML)")
	pf.StringVar(&st.flags.audio, "audio", "", "WAV file driving the plate (default: built-in tone sweep)")
	pf.StringVar(&st.flags.mode, "mode", "", "visualization mode: height, normal or reflection")
	pf.BoolVar(&st.flags.debug, "debug", false, "show the debug overlay and log at debug level")
	pf.StringVar(&st.flags.cpuProfile, "cpuprofile", "", "write a CPU profile to this file")

	root.AddCommand(newRunCommand(st), newRenderCommand(st), newVersionCommand())
	return root
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	observability.Sync()
	return err
}

// load reads the configuration, applies explicit flags and starts logging.
func (st *state) load(cmd *cobra.Command) error {
	v, err := config.NewViper(st.flags.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("audio") {
		v.Set("audio.file", st.flags.audio)
	}
	if flags.Changed("mode") {
		v.Set("render.visualization_mode", st.flags.mode)
	}
	if flags.Changed("debug") {
		v.Set("runtime.debug", st.flags.debug)
		if st.flags.debug {
			v.Set("logger.level", "debug")
		}
	}
	if flags.Changed("cpuprofile") {
		v.Set("runtime.cpu_profile", st.flags.cpuProfile)
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		observability.InitializeLogger(config.NewDefaultConfig().Logger)
		return err
	}
	observability.InitializeLogger(cfg.Logger)

	st.viper = v
	st.cfg = cfg
	st.logger = observability.GetLogger()
	st.logger.Info("Starting cymatics",
		zap.String("version", Version),
		zap.String("command", cmd.Name()),
		zap.String("config", v.ConfigFileUsed()))
	return nil
}
