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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacksym/stacksym/internal/source"
	"github.com/stacksym/stacksym/internal/utils"
	"github.com/stacksym/stacksym/pkg/stacktrace"
	"github.com/stacksym/stacksym/pkg/symcache"
)

func init() {
	rootCmd.AddCommand(symcacheCmd)
	symcacheCmd.AddCommand(symcacheBuildCmd)
	symcacheCmd.AddCommand(symcacheLookupCmd)

	symcacheBuildCmd.Flags().StringP("output", "o", "", "Where to save the symbol cache (default is <debug-file>.symcache)")
	symcacheBuildCmd.MarkFlagFilename("output")
	viper.BindPFlag("symcache.build.output", symcacheBuildCmd.Flags().Lookup("output"))

	symcacheLookupCmd.Flags().Bool("demangle", true, "Show demangled function names")
	viper.BindPFlag("symcache.lookup.demangle", symcacheLookupCmd.Flags().Lookup("demangle"))
}

// symcacheCmd represents the symcache command
var symcacheCmd = &cobra.Command{
	Use:   "symcache",
	Short: "Build and query symbol cache files",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// symcacheBuildCmd represents the symcache build command
var symcacheBuildCmd = &cobra.Command{
	Use:   "build <DEBUG_FILE>",
	Short: "Build a symbol cache from a debug file",
	Example: heredoc.Doc(`
		# Build a symbol cache next to the binary
		❯ stacksym symcache build ./target/release/app
		# Build from a dSYM bundle
		❯ stacksym symcache build App.dSYM -o app.symcache`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		debugInfo, err := source.ReadDebugFile(args[0])
		if err != nil {
			return err
		}

		start := time.Now()
		blob, err := symcache.Build(debugInfo)
		if err != nil {
			return fmt.Errorf("failed to build symbol cache: %w", err)
		}
		sc, err := symcache.Load(blob)
		if err != nil {
			return err
		}

		output := viper.GetString("symcache.build.output")
		if output == "" {
			output = filepath.Clean(args[0]) + ".symcache"
		}
		if err := os.WriteFile(output, blob, 0o644); err != nil {
			return fmt.Errorf("failed to write symbol cache: %w", err)
		}

		funcs, scopes, lines, syms := sc.Stats()
		log.WithFields(log.Fields{
			"arch":      sc.Arch(),
			"load_addr": stacktrace.FormatAddr(sc.LoadAddress()),
			"took":      time.Since(start).Round(time.Millisecond),
		}).Info("Built symbol cache")
		utils.Indent(log.Info, 2)(fmt.Sprintf("functions: %s", humanize.Comma(int64(funcs))))
		utils.Indent(log.Info, 2)(fmt.Sprintf("scopes:    %s", humanize.Comma(int64(scopes))))
		utils.Indent(log.Info, 2)(fmt.Sprintf("lines:     %s", humanize.Comma(int64(lines))))
		utils.Indent(log.Info, 2)(fmt.Sprintf("symbols:   %s", humanize.Comma(int64(syms))))
		utils.Indent(log.Info, 2)(fmt.Sprintf("size:      %s -> %s", humanize.Bytes(uint64(len(debugInfo))), humanize.Bytes(uint64(len(blob)))))
		log.Infof("Created %s", output)

		return nil
	},
}

// symcacheLookupCmd represents the symcache lookup command
var symcacheLookupCmd = &cobra.Command{
	Use:   "lookup <SYMCACHE> <ADDR>...",
	Short: "Resolve image-relative addresses with a symbol cache file",
	Example: heredoc.Doc(`
		❯ stacksym symcache lookup app.symcache 0x1a2b 0x1c00`),
	Args:          cobra.MinimumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read symbol cache: %w", err)
		}
		sc, err := symcache.Load(blob)
		if err != nil {
			return err
		}

		frames := make([]stacktrace.SymbolicatedFrame, 0, len(args)-1)
		for _, arg := range args[1:] {
			addr, err := stacktrace.ParseAddr(arg)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", arg, err)
			}
			frames = append(frames, stacktrace.SymbolicatedFrame{Addr: addr, Locations: sc.Lookup(addr)})
		}
		printFrames(frames, viper.GetBool("symcache.lookup.demangle"))
		return nil
	},
}
