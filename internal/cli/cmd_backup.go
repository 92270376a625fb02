package cli

import (
	flag "github.com/spf13/pflag"

	"github.com/galtl/safecache"
)

// cmdBackup snapshots a cache file immediately.
func (a *app) cmdBackup(args []string) error {
	flags := flag.NewFlagSet("backup", flag.ContinueOnError)
	flags.SetOutput(a.errOut)

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return errTargetRequired
	}

	target := flags.Arg(0)

	// An explicit backup command means backups are wanted, whatever the
	// config file says.
	cfg := a.writeConfig(safecache.WithBackups(true))

	snapPath, err := a.store.Backup(target, cfg)
	if err != nil {
		return err
	}

	if snapPath == "" {
		fprintln(a.out, "nothing to back up:", target, "does not exist")

		return nil
	}

	fprintln(a.out, "snapshot created:", snapPath)

	return nil
}
