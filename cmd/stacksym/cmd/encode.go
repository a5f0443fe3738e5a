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

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacksym/stacksym/pkg/stacktrace"
)

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().String("os", stacktrace.OSLinux, "Operating system the trace was captured on")
	encodeCmd.Flags().String("arch", stacktrace.ArchX86_64, "Architecture the trace was captured on")
	encodeCmd.Flags().String("version", "", "Program version (e.g. 1.2.3, 1.2.3-abcdef+dev)")
	encodeCmd.Flags().String("trace-version", "1", "Trace format version")
	encodeCmd.MarkFlagRequired("version")
	viper.BindPFlag("encode.os", encodeCmd.Flags().Lookup("os"))
	viper.BindPFlag("encode.arch", encodeCmd.Flags().Lookup("arch"))
	viper.BindPFlag("encode.version", encodeCmd.Flags().Lookup("version"))
	viper.BindPFlag("encode.trace-version", encodeCmd.Flags().Lookup("trace-version"))
}

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode <ADDR>...",
	Short: "Encode addresses into a trace",
	Example: heredoc.Doc(`
		# Build a trace for three image-relative addresses
		❯ stacksym encode --os linux --arch aarch64 --version 1.0.0 0x1 0x2 0x3`),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		traceVersion, err := cast.ToUint64E(viper.GetString("encode.trace-version"))
		if err != nil {
			return fmt.Errorf("invalid --trace-version: %w", err)
		}
		ver, err := stacktrace.ParseVersion(viper.GetString("encode.version"))
		if err != nil {
			return err
		}
		st := &stacktrace.StackTrace{
			Header: stacktrace.Header{
				TraceVersion: traceVersion,
				OS:           viper.GetString("encode.os"),
				Arch:         viper.GetString("encode.arch"),
				Version:      ver,
			},
			Addrs: make([]uint64, 0, len(args)),
		}
		for _, arg := range args {
			addr, err := stacktrace.ParseAddr(arg)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", arg, err)
			}
			st.Addrs = append(st.Addrs, addr)
		}

		text, err := stacktrace.EncodeString(st)
		if err != nil {
			return err
		}
		log.WithField("key", st.Header.CacheKey()).Debug("Encoded trace")
		fmt.Println(text)
		return nil
	},
}
