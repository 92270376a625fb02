package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

var (
	errRestoreFailed  = errors.New("restore failed (see log for cause)")
	errRestoreAborted = errors.New("restore aborted")
)

// cmdRestore overwrites a cache file with its newest valid snapshot.
// Because this clobbers the live file, it asks for confirmation unless
// --yes is given.
func (a *app) cmdRestore(args []string) error {
	flags := flag.NewFlagSet("restore", flag.ContinueOnError)
	flags.SetOutput(a.errOut)

	yes := flags.BoolP("yes", "y", false, "skip the confirmation prompt")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return errTargetRequired
	}

	target := flags.Arg(0)

	if !*yes {
		confirmed, err := confirmRestore(target)
		if err != nil {
			return err
		}

		if !confirmed {
			return errRestoreAborted
		}
	}

	if !a.store.Restore(target, a.writeConfig()) {
		return errRestoreFailed
	}

	fprintln(a.out, "restored", target, "from its newest snapshot")

	return nil
}

// confirmRestore prompts on the terminal. Ctrl-C counts as "no".
func confirmRestore(target string) (bool, error) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	answer, err := line.Prompt(fmt.Sprintf("restore will overwrite %s, continue? [y/N] ", target))
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return false, nil
		}

		return false, fmt.Errorf("read confirmation: %w", err)
	}

	answer = strings.ToLower(strings.TrimSpace(answer))

	return answer == "y" || answer == "yes", nil
}
