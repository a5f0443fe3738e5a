/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacksym/stacksym/api/types"
	"github.com/stacksym/stacksym/internal/config"
	"github.com/stacksym/stacksym/internal/daemon"
)

var (
	cfgFile string
	// AppVersion stores the daemon's version
	AppVersion string
	// AppBuildTime stores the daemon's build time
	AppBuildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "stacksymd",
	Short:         "stacksym daemon",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if conf.Daemon.Debug {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetHandler(jsonhandler.New(os.Stderr))
		}
		types.BuildVersion = AppVersion
		types.BuildTime = AppBuildTime

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dae := daemon.NewDaemon(conf)
		errCh := make(chan error, 1)
		go func() {
			errCh <- dae.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil {
				dae.Stop()
				return fmt.Errorf("daemon failed: %w", err)
			}
			return nil
		case <-ctx.Done():
			log.Info("Stopping daemon")
			if err := dae.Stop(); err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			return <-errCh
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)
	cobra.OnInitialize(initConfig)
	// Flags
	var defaultConfg string
	switch runtime.GOOS {
	case "darwin":
		defaultConfg = filepath.Join("$HOME", ".config", "stacksym", "config.yml")
	case "windows":
		defaultConfg = filepath.Join("$AppData", "stacksym", "config.yml")
	case "linux":
		defaultConfg = "/etc/stacksym/config.yml"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", fmt.Sprintf("config file (default is %s)", defaultConfg))
	// Settings
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		switch runtime.GOOS {
		case "darwin":
			viper.AddConfigPath(filepath.Join(home, ".config", "stacksym"))
		case "windows":
			dir := os.Getenv("AppData")
			if dir == "" {
				log.Error("init config: %AppData% is not defined")
			}
			viper.AddConfigPath(filepath.Join(dir, "stacksym"))
		case "linux":
			viper.AddConfigPath(filepath.Join("/etc", "stacksym"))
			viper.AddConfigPath(filepath.Join(home, ".config", "stacksym"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("stacksym")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.WithField("config", viper.ConfigFileUsed()).Debug("using config file")
	}
}
