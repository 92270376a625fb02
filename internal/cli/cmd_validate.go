package cli

import (
	"errors"

	flag "github.com/spf13/pflag"
)

var errInvalidCache = errors.New("cache file is not structurally valid")

// cmdValidate checks a cache file's structure and exits non-zero when it is
// invalid.
func (a *app) cmdValidate(args []string) error {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)
	flags.SetOutput(a.errOut)

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return errTargetRequired
	}

	target := flags.Arg(0)

	if !a.store.Validate(target) {
		return errInvalidCache
	}

	fprintln(a.out, target, "is valid")

	return nil
}
