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
	"encoding/json"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacksym/stacksym/pkg/stacktrace"
)

var colorField = color.New(color.Bold, color.FgHiBlue).SprintFunc()
var colorAddr = color.New(color.Faint).SprintFunc()

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	viper.BindPFlag("decode.json", decodeCmd.Flags().Lookup("json"))
}

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <TRACE|->",
	Short: "Decode a trace without symbolicating it",
	Example: heredoc.Doc(`
		# Show the header and raw addresses of a trace
		❯ stacksym decode AQAAAQAAAAABAgM
		# Read the trace from stdin and print JSON
		❯ pbpaste | stacksym decode - --json`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readTrace(args[0])
		if err != nil {
			return err
		}
		st, err := stacktrace.DecodeString(text)
		if err != nil {
			return err
		}

		if viper.GetBool("decode.json") {
			out, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal trace: %w", err)
			}
			fmt.Println(string(out))
			return nil
		}

		printHeader(st.Header)
		for i, addr := range st.Addrs {
			fmt.Printf("%3d  %s\n", i, colorAddr(stacktrace.FormatAddr(addr)))
		}
		return nil
	},
}

func printHeader(h stacktrace.Header) {
	fmt.Printf("%s %d\n", colorField("Trace Version:"), h.TraceVersion)
	fmt.Printf("%s %s\n", colorField("OS:           "), h.OS)
	fmt.Printf("%s %s\n", colorField("Arch:         "), h.Arch)
	fmt.Printf("%s %s\n", colorField("Version:      "), h.Version)
	fmt.Printf("%s %s\n\n", colorField("Cache Key:    "), h.CacheKey())
}
