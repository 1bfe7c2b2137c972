package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"mcqquiz/internal/quiz"
	"mcqquiz/internal/recovery"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quizparse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "Path to the raw model output (reads stdin when empty)")
	repair := fs.Bool("repair", false, "Try a JSON repair pass on blocks that still fail to decode")
	questions := fs.Bool("questions", false, "Print typed quiz questions instead of the raw records")
	verbose := fs.Bool("verbose", false, "Print a summary to stderr")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	in := stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintf(stderr, "Error: cannot read input file: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	var opts []recovery.Option
	if *repair {
		opts = append(opts, recovery.WithRepairFallback())
	}
	res, err := recovery.New(opts...).RecoverReader(in)
	if err != nil {
		fmt.Fprintf(stderr, "Error recovering records: %v\n", err)
		return 1
	}

	var out any = res
	if *questions {
		out = quiz.FromRecords(res)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error encoding output: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(data))

	if *verbose {
		fmt.Fprintf(stderr, "Recovered %d records, dropped %d blocks\n", res.Len(), res.Dropped)
	}
	return 0
}
