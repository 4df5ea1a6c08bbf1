// Command dafr is an interactive shell over the query engine: open a
// tabular file, compose a pipeline, preview it, and export or persist the
// session.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-dafr/dafr/config"
	"github.com/go-dafr/dafr/errors"
	"github.com/go-dafr/dafr/operations"
	"github.com/go-dafr/dafr/query"
)

func main() {
	configPath := flag.String("config", "", "optional config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if *debug {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		level.Error(logger).Log("msg", "bad config", "err", err)
		os.Exit(1)
	}

	eng, err := query.New(cfg, prometheus.DefaultRegisterer, query.WithLogger(logger))
	if err != nil {
		level.Error(logger).Log("msg", "engine start failed", "err", err)
		os.Exit(1)
	}
	defer eng.Close()

	var g run.Group
	g.Add(func() error {
		return repl(eng)
	}, func(error) {
		// the liner loop notices quit on its next prompt; nothing to interrupt
	})
	g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))
	if err := g.Run(); err != nil {
		if _, ok := err.(run.SignalError); !ok {
			level.Error(logger).Log("msg", "exited", "err", err)
			os.Exit(1)
		}
	}
}

func repl(eng *query.Engine) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("dafr - type 'help' for commands")
	for {
		input, err := line.Prompt("dafr> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if input == "quit" || input == "exit" {
			return nil
		}
		dispatch(eng, input)
	}
}

func dispatch(eng *query.Engine, input string) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help":
		printHelp()
	case "open":
		if len(args) != 1 {
			fmt.Println("usage: open <path>")
			return
		}
		report(eng.OpenFile(args[0]))
	case "preview":
		showPreview(eng)
	case "ops":
		for i, desc := range eng.GetOperations() {
			fmt.Printf("%2d  %s\n", i, desc)
		}
	case "add":
		in, err := parseInput(args)
		if err != nil {
			fmt.Println(err)
			return
		}
		report(eng.AddOperation(in))
	case "rm":
		if len(args) != 1 {
			fmt.Println("usage: rm <index>")
			return
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("usage: rm <index>")
			return
		}
		if err := eng.RemoveOperation(i); err != nil {
			fmt.Println(errors.Format(err))
		}
	case "undo":
		fmt.Println(eng.UndoOperation())
	case "redo":
		fmt.Println(eng.RedoOperation())
	case "clear":
		eng.ClearPipeline()
	case "save":
		if len(args) != 1 {
			fmt.Println("usage: save <path>")
			return
		}
		report(eng.SaveState(args[0]))
	case "load":
		if len(args) != 1 {
			fmt.Println("usage: load <path>")
			return
		}
		report(eng.LoadState(args[0]))
	case "export":
		if len(args) != 2 {
			fmt.Println("usage: export <path> <csv|parquet>")
			return
		}
		report(eng.ExportData(context.Background(), args[0], args[1], nil))
	case "meta":
		meta, err := eng.GetFileMetadata()
		if err != nil {
			fmt.Println(errors.Format(err))
			return
		}
		fmt.Printf("%s (%s, %s)\n", meta.Path, meta.SourceType, meta.Size)
	default:
		fmt.Printf("unknown command %q - type 'help'\n", cmd)
	}
}

func report(msg string, err error) {
	if err != nil {
		fmt.Println(errors.Format(err))
		return
	}
	fmt.Println(msg)
}

const previewPrintRows = 10

func showPreview(eng *query.Engine) {
	res, computing, err := eng.GetPreview()
	if err != nil {
		fmt.Println(errors.Format(err))
		return
	}
	if computing {
		fmt.Println("preview is still computing; try again")
		return
	}
	fmt.Println(strings.Join(res.Headers, " | "))
	for i, row := range res.Rows {
		if i >= previewPrintRows {
			fmt.Printf("... %d more preview rows\n", len(res.Rows)-previewPrintRows)
			break
		}
		fmt.Println(strings.Join(row, " | "))
	}
	fmt.Printf("%d rows total, %d in preview\n", res.TotalRows, res.PreviewRows)
	for _, s := range res.Stats {
		min, max := "-", "-"
		if s.Min != nil {
			min = *s.Min
		}
		if s.Max != nil {
			max = *s.Max
		}
		fmt.Printf("  %s %s min=%s max=%s nulls=%d errors=%d\n",
			s.Name, s.Dtype, min, max, s.NullCount, s.ErrorCount)
	}
}

// parseInput converts key=value arguments into operation input, e.g.
// add op_type=filter column=age filter_op=gt value=30
func parseInput(args []string) (operations.Input, error) {
	var in operations.Input
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return in, fmt.Errorf("expected key=value, got %q", arg)
		}
		switch key {
		case "op_type":
			in.OpType = value
		case "column":
			in.Column = value
		case "filter_op":
			in.FilterOp = value
		case "value":
			in.Value = value
		case "descending":
			in.Descending = value == "true"
		case "rename_from":
			in.RenameFrom = value
		case "rename_to":
			in.RenameTo = value
		case "columns":
			in.Columns = strings.Split(value, ",")
		case "limit":
			n, err := strconv.Atoi(value)
			if err != nil {
				return in, fmt.Errorf("limit must be an integer")
			}
			in.Limit = n
		case "fill_strategy":
			in.FillStrategy = value
		case "fill_value":
			in.FillValue = value
		case "cast_dtype":
			in.CastDtype = value
		case "datetime_format":
			in.DatetimeFormat = value
		default:
			return in, fmt.Errorf("unknown option %q", key)
		}
	}
	return in, nil
}

func printHelp() {
	fmt.Print(`commands:
  open <path>                 open a data file (csv, tsv, parquet, ipc, ndjson, xlsx, sqlite)
  preview                     show the current pipeline's preview
  ops                         list pipeline operations
  add key=value ...           add an operation, e.g. add op_type=filter column=age filter_op=gt value=30
  rm <index>                  remove an operation
  undo | redo | clear         edit history
  save <path> | load <path>   persist or restore the session (.dfr)
  export <path> <csv|parquet> export the full result
  meta                        show source file metadata
  quit
`)
}
