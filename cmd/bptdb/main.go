// Command bptdb inspects and rebuilds bptdb database files.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nyan233/bptdb"
	"github.com/pkg/errors"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns an exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bptdb", flag.ContinueOnError)
	fs.SetOutput(stderr)

	dump := fs.String("dump", "", "Dump the database as text to a file, '-' for stdout")
	load := fs.String("load", "", "Rebuild the database from a text dump, '-' for stdin")
	query := fs.String("query", "", "Print the value stored under a key")
	fs.Bool("check", false, "Verify the tree structure")
	codecName := fs.String("codec", "json", "Value codec: json, string, bytes")
	syncWrites := fs.Bool("sync", false, "Datasync the file after every write")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		printUsage(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: database file not specified")
		return 1
	}

	given := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		given[f.Name] = true
	})
	modes := 0
	for _, name := range []string{"dump", "load", "query", "check"} {
		if given[name] {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(stderr, "Error: exactly one of -dump, -load, -query or -check must be specified")
		return 1
	}

	codec, err := lookupCodec(*codecName)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	path := fs.Arg(0)
	db := bptdb.NewBPTreeDisk[any](bptdb.Config{
		RootDir:    filepath.Dir(path),
		Name:       filepath.Base(path),
		Logger:     logger,
		SyncWrites: *syncWrites,
	}, codec)
	if err = db.Init(); err != nil {
		fmt.Fprintf(stderr, "Error opening database: %v\n", err)
		return 1
	}
	defer db.Close()

	switch {
	case given["dump"]:
		err = dumpCmd(db, *dump, stdout)
	case given["load"]:
		err = loadCmd(db, *load, stdin, logger)
	case given["query"]:
		err = queryCmd(db, *query, stdout)
	case given["check"]:
		err = checkCmd(db, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func dumpCmd(db *bptdb.BPTreeDisk[any], target string, stdout io.Writer) error {
	if target == "-" {
		_, err := db.Dump(stdout)
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err = db.Dump(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// loadCmd empties the database first, so the tree is rebuilt from the dump alone.
func loadCmd(db *bptdb.BPTreeDisk[any], source string, stdin io.Reader, logger *slog.Logger) error {
	r := stdin
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := db.Reset(); err != nil {
		return err
	}
	n, err := db.Load(r)
	if err != nil {
		return err
	}
	logger.Info("load complete", "entries", n)
	return nil
}

func queryCmd(db *bptdb.BPTreeDisk[any], key string, stdout io.Writer) error {
	val, found, err := db.Get(bptdb.ParseKey(key))
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(stdout, "null")
		return nil
	}
	text, err := json.Marshal(val)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, string(text))
	return nil
}

func checkCmd(db *bptdb.BPTreeDisk[any], stdout io.Writer) error {
	info, err := db.Check()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ok: height=%d pages=%d leaves=%d keys=%d\n", info.Height, info.Pages, info.Leaves, info.Keys)
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: bptdb [options] <file>

Exactly one of -dump, -load, -query or -check is required.

Options:
`)
}
