package cmd

import (
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/masahiro331/go-ext4-metadata/ext4"
)

const (
	configFileName = ".ext4meta"
	envPrefix      = "EXT4META"
)

var (
	cfgFile string
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:          "ext4meta",
	Short:        "Locate and decode ext4 metadata in a raw image",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(viper.GetBool("debug"))
		if err != nil {
			return xerrors.Errorf("failed to build logger: %w", err)
		}
		logger = l
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default $HOME/.ext4meta.yaml)")
	f.StringP("image", "i", "", "path to the ext4 image")
	f.Bool("debug", false, "enable debug logging")
	bindConfig()

	rootCmd.AddCommand(superCmd, groupCmd, inodeCmd, istatCmd, bstatCmd, xattrCmd)
}

// bindConfig wires flags and EXT4META_* variables into viper.
func bindConfig() {
	bindFlags(rootCmd.PersistentFlags(), "image", "debug")
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
}

// bindFlags makes the named flags readable through viper, where they take
// precedence over EXT4META_* variables and the config file.
func bindFlags(f *pflag.FlagSet, names ...string) {
	for _, name := range names {
		_ = viper.BindPFlag(name, f.Lookup(name))
	}
}

// initConfig reads the config file if there is one. A missing file is not
// an error, flags and environment still apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configFileName)
	}
	_ = viper.ReadInConfig()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

// openImage opens the configured image. The caller closes the file.
func openImage() (*os.File, *ext4.FileSystem, error) {
	path := viper.GetString("image")
	if path == "" {
		return nil, nil, xerrors.Errorf("no image given, set --image or %s_IMAGE", envPrefix)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to open %s: %w", path, err)
	}
	fs, err := ext4.NewFS(f, ext4.WithLogger(logger.Named("ext4").With(zap.String("image", path))))
	if err != nil {
		f.Close()
		return nil, nil, xerrors.Errorf("failed to load %s: %w", path, err)
	}
	return f, fs, nil
}
