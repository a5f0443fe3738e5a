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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/briandowns/spinner"
	"github.com/caarlos0/ctrlc"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacksym/stacksym/internal/config"
	"github.com/stacksym/stacksym/internal/daemon"
	"github.com/stacksym/stacksym/internal/db"
	"github.com/stacksym/stacksym/internal/source"
	"github.com/stacksym/stacksym/pkg/stacktrace"
)

var colorFunc = color.New(color.Bold, color.FgHiGreen).SprintFunc()
var colorInline = color.New(color.FgHiMagenta).SprintFunc()
var colorFile = color.New(color.FgHiBlue).SprintFunc()

// symbolicator is satisfied by both the daemon client and a local Symbolicator.
type symbolicator interface {
	Symbolicate(ctx context.Context, trace string, debugInfo []byte) (*stacktrace.SymbolicatedStackTrace, error)
}

func init() {
	rootCmd.AddCommand(symbolicateCmd)
	symbolicateCmd.Flags().StringP("debug-info", "d", "", "Debug file (ELF, Mach-O, PE or .dSYM) to build the symbol cache from")
	symbolicateCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	symbolicateCmd.Flags().Bool("demangle", true, "Show demangled function names")
	symbolicateCmd.MarkFlagFilename("debug-info")
	viper.BindPFlag("symbolicate.debug-info", symbolicateCmd.Flags().Lookup("debug-info"))
	viper.BindPFlag("symbolicate.json", symbolicateCmd.Flags().Lookup("json"))
	viper.BindPFlag("symbolicate.demangle", symbolicateCmd.Flags().Lookup("demangle"))
}

// symbolicateCmd represents the symbolicate command
var symbolicateCmd = &cobra.Command{
	Use:     "symbolicate <TRACE|-> [DEBUG_FILE]",
	Aliases: []string{"sym"},
	Short:   "Symbolicate a trace",
	Example: heredoc.Doc(`
		# Symbolicate against a local debug file
		❯ stacksym symbolicate AQAAAQAAAAABAgM ./target/release/app
		# Symbolicate on a running daemon
		❯ stacksym sym --server unix://$HOME/.config/stacksym/stacksym.sock AQAAAQAAAAABAgM
		# Print the result as JSON
		❯ stacksym sym -d app.dSYM --json - < trace.txt`),
	Args:          cobra.RangeArgs(1, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readTrace(args[0])
		if err != nil {
			return err
		}

		path := viper.GetString("symbolicate.debug-info")
		if len(args) > 1 {
			path = args[1]
		}
		var debugInfo []byte
		if path != "" {
			debugInfo, err = source.ReadDebugFile(path)
			if err != nil {
				return err
			}
			log.WithField("path", path).Debug("Read debug file")
		}

		var sym symbolicator
		if c, err := daemonClient(); err != nil {
			return err
		} else if c != nil {
			sym = c
		} else {
			conf, err := config.LoadConfig()
			if err != nil {
				return err
			}
			s, err := db.New(conf)
			if err != nil {
				return fmt.Errorf("failed to open %s store: %w", conf.Store.Type, err)
			}
			defer s.Close()
			local, err := daemon.NewSymbolicator(conf, s)
			if err != nil {
				return err
			}
			sym = local
		}

		var result *stacktrace.SymbolicatedStackTrace
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := spinner.New(spinner.CharSets[38], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Prefix = color.BlueString("   • Symbolicating... ")
		s.Start()
		err = ctrlc.Default.Run(ctx, func() error {
			var err error
			result, err = sym.Symbolicate(ctx, text, debugInfo)
			return err
		})
		s.Stop()
		if err != nil {
			return fmt.Errorf("failed to symbolicate trace: %w", err)
		}

		if viper.GetBool("symbolicate.json") {
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		}

		printHeader(result.Header)
		printFrames(result.Frames, viper.GetBool("symbolicate.demangle"))
		return nil
	},
}

func printFrames(frames []stacktrace.SymbolicatedFrame, demangled bool) {
	for i, f := range frames {
		addr := colorAddr(stacktrace.FormatAddr(f.Addr))
		if len(f.Locations) == 0 {
			fmt.Printf("%3d  %s  ???\n", i, addr)
			continue
		}
		for j, loc := range f.Locations {
			name := loc.Name
			if demangled && loc.DemangledName != "" {
				name = loc.DemangledName
			}
			where := colorFile(fmt.Sprintf("%s:%d", loc.FullPath, loc.Line))
			if j == 0 {
				fmt.Printf("%3d  %s  %s  %s\n", i, addr, colorFunc(name), where)
			} else {
				fmt.Printf("%3s  %s  %s  %s\n", "", colorInline("inlined into"), colorFunc(name), where)
			}
		}
	}
}
