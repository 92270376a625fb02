package cli

import (
	flag "github.com/spf13/pflag"

	"github.com/galtl/safecache"
)

// cmdPrune deletes snapshots beyond the retention count.
func (a *app) cmdPrune(args []string) error {
	flags := flag.NewFlagSet("prune", flag.ContinueOnError)
	flags.SetOutput(a.errOut)

	keep := flags.IntP("keep", "k", -1, "override how many snapshots to keep")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return errTargetRequired
	}

	target := flags.Arg(0)

	var extra []safecache.Option
	if *keep >= 0 {
		extra = append(extra, safecache.WithRetentionCount(*keep))
	}

	removed, err := a.store.Prune(target, a.writeConfig(extra...))
	if err != nil {
		return err
	}

	fprintln(a.out, "pruned", removed, "snapshot(s) of", target)

	return nil
}
