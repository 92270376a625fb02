package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/galtl/safecache"
)

// cmdSave reads a JSON array of records and writes it to the target.
func (a *app) cmdSave(args []string) error {
	flags := flag.NewFlagSet("save", flag.ContinueOnError)
	flags.SetOutput(a.errOut)

	input := flags.StringP("input", "i", "-", "read records from file instead of stdin")
	simple := flags.Bool("simple", false, "plain overwrite, skipping staging, validation, and snapshots")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return errTargetRequired
	}

	target := flags.Arg(0)

	data, err := a.readInput(*input)
	if err != nil {
		return err
	}

	records, err := safecache.DecodeRecords(data)
	if err != nil {
		return err
	}

	opts := a.cfg.WriteOptions()
	if *simple {
		opts = append(opts, safecache.WithEnabled(false))
	}

	cfg := safecache.NewConfig(opts...)

	if err := a.store.Save(context.Background(), records, target, cfg); err != nil {
		return err
	}

	fprintln(a.out, "saved", len(records), "records to", target)

	return nil
}

func (a *app) readInput(input string) ([]byte, error) {
	if input == "-" {
		data, err := io.ReadAll(a.in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("read input %q: %w", input, err)
	}

	return data, nil
}
