// Command xpd expands macro calls to their definitions.
package main

import (
	"bufio"
	"fmt"
	"iter"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/xpd-go/xpd/internal/directive"
	"github.com/xpd-go/xpd/internal/expand"
	"github.com/xpd-go/xpd/internal/harvest"
	"github.com/xpd-go/xpd/internal/lexer"
	"github.com/xpd-go/xpd/internal/report"
)

var (
	outFname      string
	debugTokenize bool
	debugMatched  bool

	rootCmd = &cobra.Command{
		Use:          "xpd [FILE]",
		Short:        "Expand macro calls to their definitions",
		Long:         "xpd reads a file of text containing define/include/endmacro directives and macro calls, and writes the expanded result. With no FILE, it reads standard input.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&outFname, "output", "o", "", "store output in file OUT")
	rootCmd.Flags().BoolVar(&debugTokenize, "debug-tokenize", false, "output tokenized stream of the input")
	rootCmd.Flags().BoolVar(&debugMatched, "debug-matched", false, "output tokenized stream after matching define/include")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := logrus.StandardLogger()
	sink := report.NewLogrusSink(logger)
	fs := afero.NewOsFs()

	var inFname string
	hasFile := len(args) == 1
	if hasFile {
		inFname = args[0]
	}

	switch {
	case debugTokenize:
		return runDebugTokenize(fs, hasFile, inFname)
	case debugMatched:
		return runDebugMatched(fs, hasFile, inFname, sink)
	default:
		return runExpand(fs, hasFile, inFname, sink)
	}
}

func runDebugTokenize(fs afero.Fs, hasFile bool, inFname string) error {
	lx, closeFn, err := newLexer(fs, hasFile, inFname)
	if err != nil {
		return err
	}
	defer closeFn()

	for p := range lx.All() {
		fmt.Println(p)
	}
	return nil
}

func runDebugMatched(fs afero.Fs, hasFile bool, inFname string, sink report.Sink) error {
	lx, closeFn, err := newLexer(fs, hasFile, inFname)
	if err != nil {
		return err
	}
	defer closeFn()

	for item := range directive.Recognize(lx.All(), sink) {
		fmt.Println(item)
	}
	return nil
}

func runExpand(fs afero.Fs, hasFile bool, inFname string, sink report.Sink) error {
	macros := harvest.MacroTable{}

	var harvested iter.Seq[lexer.Piece]
	if hasFile {
		harvested = harvest.HarvestFile(fs, inFname, macros, sink)
	} else {
		harvested = harvest.HarvestStdin(os.Stdin, fs, macros, sink)
	}

	exp := expand.New(macros, sink)

	w, closeFn, err := newOutput(fs)
	if err != nil {
		return err
	}
	defer closeFn()

	buf := bufio.NewWriter(w)
	for piece := range exp.ExpandTop(harvested) {
		if piece.Kind != lexer.EndOfFile {
			if _, err := buf.WriteString(piece.Text()); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
	}
	return buf.Flush()
}

// newLexer opens the input named by inFname (or standard input, when
// hasFile is false) and returns a Lexer over it along with a function that
// releases any resources newLexer acquired.
func newLexer(fs afero.Fs, hasFile bool, inFname string) (*lexer.Lexer, func(), error) {
	if !hasFile {
		return lexer.New(os.Stdin), func() {}, nil
	}

	f, err := fs.Open(inFname)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open %q: %w", inFname, err)
	}
	return lexer.NewNamed(f, inFname), func() { f.Close() }, nil
}

// newOutput opens outFname for writing on fs, or standard output when
// outFname is empty, matching the original's "write to stdout unless -o is
// given" behavior.
func newOutput(fs afero.Fs) (afero.File, func(), error) {
	if outFname == "" {
		return os.Stdout, func() {}, nil
	}

	f, err := fs.Create(outFname)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create %q: %w", outFname, err)
	}
	return f, func() { f.Close() }, nil
}
