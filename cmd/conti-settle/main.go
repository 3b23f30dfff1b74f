// Command conti-settle computes settlements offline and seeds stores.
//
//	conti-settle -in expenses.json [-pretty]   settle a JSON array of expenses ("-" reads stdin)
//	conti-settle -room trip2024 [-pretty]      settle a room from the configured backend
//	conti-settle -seed fixture.json            load rooms, members and expenses into the backend
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"conti/internal/cli"
	"conti/internal/config"
	"conti/internal/log"
	"conti/internal/rooms"
	"conti/internal/settlement"
)

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("conti-settle", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "JSON file with an array of expenses, - for stdin")
	room := fs.String("room", "", "room id to settle from the configured backend")
	seed := fs.String("seed", "", "fixture file to load into the configured backend")
	pretty := fs.Bool("pretty", false, "indent JSON output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	modes := 0
	for _, v := range []string{*in, *room, *seed} {
		if v != "" {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(stderr, "exactly one of -in, -room or -seed is required")
		fs.Usage()
		return 2
	}

	var err error
	switch {
	case *in != "":
		err = settleFile(*in, stdin, stdout, *pretty)
	case *room != "":
		err = withApp(ctx, stderr, func(app *cli.App) error {
			res, err := app.Settlements.Settle(ctx, *room)
			if err != nil {
				return err
			}
			return writeJSON(stdout, res, *pretty)
		})
	case *seed != "":
		err = withApp(ctx, stderr, func(app *cli.App) error {
			fixture, err := rooms.LoadFixture(*seed)
			if err != nil {
				return err
			}
			n, err := fixture.Apply(ctx, app.Store)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "seeded %d rooms and %d expenses\n", len(fixture.Rooms), n)
			return nil
		})
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return 3
		}
		return 1
	}
	return 0
}

func settleFile(path string, stdin io.Reader, stdout io.Writer, pretty bool) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open expenses: %w", err)
		}
		defer f.Close()
		r = f
	}

	var expenses []settlement.Expense
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&expenses); err != nil {
		return fmt.Errorf("parse expenses: %w", err)
	}
	return writeJSON(stdout, settlement.Compute(expenses), pretty)
}

// withApp boots the configured backend with logs on stderr.
func withApp(ctx context.Context, stderr io.Writer, fn func(*cli.App) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: level, Format: cfg.LogFormat, Component: log.ComponentApp, Output: stderr})

	// events from a one-shot command would only duplicate the worker's
	cfg.AMQPURL = ""
	app, err := cli.Bootstrap(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	return errors.Join(fn(app), app.Close())
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
