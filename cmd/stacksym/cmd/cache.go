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
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacksym/stacksym/internal/client"
	"github.com/stacksym/stacksym/internal/config"
	"github.com/stacksym/stacksym/internal/daemon"
	"github.com/stacksym/stacksym/internal/db"
)

// cacheAdmin manages the stored symbol caches.
type cacheAdmin interface {
	Keys(ctx context.Context) ([]string, error)
	Forget(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}

type remoteCache struct {
	*client.Client
}

func (r remoteCache) Keys(ctx context.Context) ([]string, error) { return r.SymCaches(ctx) }
func (r remoteCache) Forget(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return r.DeleteSymCache(ctx, key)
}
func (r remoteCache) Purge(ctx context.Context) error { return r.DeleteSymCache(ctx, "") }

// openCache returns the daemon's caches when --server is set and the
// configured store otherwise. The returned func releases the store.
func openCache() (cacheAdmin, func(), error) {
	if c, err := daemonClient(); err != nil {
		return nil, nil, err
	} else if c != nil {
		return remoteCache{c}, func() {}, nil
	}
	conf, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	s, err := db.New(conf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", conf.Store.Type, err)
	}
	sym, err := daemon.NewSymbolicator(conf, s)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return sym, func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	}, nil
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheLsCmd)
	cacheCmd.AddCommand(cacheRmCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().BoolP("force", "f", false, "Do not ask for confirmation")
	viper.BindPFlag("cache.clear.force", cacheClearCmd.Flags().Lookup("force"))
}

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage stored symbol caches",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// cacheLsCmd represents the cache ls command
var cacheLsCmd = &cobra.Command{
	Use:           "ls",
	Aliases:       []string{"list"},
	Short:         "List stored symbol cache keys",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, done, err := openCache()
		if err != nil {
			return err
		}
		defer done()

		keys, err := cache.Keys(cmd.Context())
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			log.Info("No symbol caches stored")
			return nil
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil
	},
}

// cacheRmCmd represents the cache rm command
var cacheRmCmd = &cobra.Command{
	Use:   "rm <KEY>...",
	Short: "Remove stored symbol caches",
	Example: heredoc.Doc(`
		❯ stacksym cache rm x86_64/linux/1.2.3 aarch64/macos/1.2.3-134f14fe`),
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, done, err := openCache()
		if err != nil {
			return err
		}
		defer done()

		for _, key := range args {
			if err := cache.Forget(cmd.Context(), key); err != nil {
				return fmt.Errorf("failed to remove %s: %w", key, err)
			}
			log.WithField("key", key).Info("Removed symbol cache")
		}
		return nil
	},
}

// cacheClearCmd represents the cache clear command
var cacheClearCmd = &cobra.Command{
	Use:           "clear",
	Short:         "Remove every stored symbol cache",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !viper.GetBool("cache.clear.force") {
			cont := false
			prompt := &survey.Confirm{
				Message: "You are about to remove ALL stored symbol caches. Continue?",
			}
			if err := survey.AskOne(prompt, &cont); err != nil {
				if errors.Is(err, terminal.InterruptErr) {
					log.Warn("Exiting...")
					return nil
				}
				return err
			}
			if !cont {
				return nil
			}
		}

		cache, done, err := openCache()
		if err != nil {
			return err
		}
		defer done()

		if err := cache.Purge(cmd.Context()); err != nil {
			return err
		}
		log.Info("Removed all symbol caches")
		return nil
	},
}
