// Package cli implements the tlc command line interface.
//
// tlc manages translation cache files: it writes them atomically, validates
// their structure, and manages the timestamped snapshots taken before every
// overwrite.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/galtl/safecache"
	"github.com/galtl/safecache/pkg/fs"
)

const helpFlag = "--help"

var (
	errFlagRequiresArg = errors.New("flag requires an argument")
	errUnknownFlag     = errors.New("unknown flag")
	errTargetRequired  = errors.New("target path is required")
)

// Run is the main entry point. Returns the exit code.
func Run(in io.Reader, out, errOut io.Writer, args []string) int {
	if len(args) < 2 {
		printUsage(out)

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if len(flags.remaining) == 0 {
		printUsage(out)

		return 0
	}

	cmd := flags.remaining[0]
	if cmd == "-h" || cmd == helpFlag {
		printUsage(out)

		return 0
	}

	workDir, err := os.Getwd()
	if err != nil {
		fprintln(errOut, "error: cannot get working directory:", err)

		return 1
	}

	cfg, err := LoadConfig(workDir, flags.configPath)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	logLevel := cfg.LogLevel
	if flags.logLevel != "" {
		logLevel = flags.logLevel
	}

	logFile := cfg.LogFile
	if flags.logFile != "" {
		logFile = flags.logFile
	}

	logger, err := newLogger(errOut, logLevel, logFile)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	app := &app{
		in:     in,
		out:    out,
		errOut: errOut,
		store:  safecache.New(fs.NewReal(), logger),
		cfg:    cfg,
		log:    logger,
	}

	var cmdErr error

	switch cmd {
	case "save":
		cmdErr = app.cmdSave(flags.remaining[1:])
	case "validate":
		cmdErr = app.cmdValidate(flags.remaining[1:])
	case "backup":
		cmdErr = app.cmdBackup(flags.remaining[1:])
	case "restore":
		cmdErr = app.cmdRestore(flags.remaining[1:])
	case "prune":
		cmdErr = app.cmdPrune(flags.remaining[1:])
	default:
		fprintln(errOut, "error: unknown command:", cmd)
		printUsage(errOut)

		return 1
	}

	if cmdErr != nil {
		fprintln(errOut, "error:", cmdErr)

		return 1
	}

	return 0
}

// app bundles the wiring every command needs.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	store  *safecache.Store
	cfg    Config
	log    *logrus.Logger
}

// writeConfig builds the per-call write configuration from the config file
// plus any extra overrides.
func (a *app) writeConfig(extra ...safecache.Option) safecache.Config {
	return safecache.NewConfig(append(a.cfg.WriteOptions(), extra...)...)
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "--config":
			val, consumed, err := flagValue(args, i)
			if err != nil {
				return globalFlags{}, err
			}

			flags.configPath = val
			i += consumed
		case "--log-level":
			val, consumed, err := flagValue(args, i)
			if err != nil {
				return globalFlags{}, err
			}

			flags.logLevel = val
			i += consumed
		case "--log-file":
			val, consumed, err := flagValue(args, i)
			if err != nil {
				return globalFlags{}, err
			}

			flags.logFile = val
			i += consumed
		default:
			if len(arg) > 1 && arg[0] == '-' && arg != "-h" && arg != helpFlag {
				return globalFlags{}, fmt.Errorf("%w: %s", errUnknownFlag, arg)
			}

			flags.remaining = args[i:]

			return flags, nil
		}
	}

	return flags, nil
}

func flagValue(args []string, i int) (string, int, error) {
	if i+1 >= len(args) {
		return "", 0, fmt.Errorf("%w: %s", errFlagRequiresArg, args[i])
	}

	return args[i+1], 2, nil
}

func printUsage(out io.Writer) {
	fprintln(out, "Usage: tlc [global flags] <command> [args]")
	fprintln(out)
	fprintln(out, "Commands:")
	fprintln(out, "  save <target>       Write records (JSON array on stdin or --input) atomically")
	fprintln(out, "  validate <target>   Check a cache file's structure")
	fprintln(out, "  backup <target>     Snapshot a cache file now")
	fprintln(out, "  restore <target>    Overwrite a cache file from its newest snapshot")
	fprintln(out, "  prune <target>      Delete snapshots beyond the retention count")
	fprintln(out)
	fprintln(out, "Global flags:")
	fprintln(out, "  --config <path>     Config file (default ./"+ConfigFileName+")")
	fprintln(out, "  --log-level <lvl>   debug, info, warning, error (default warning)")
	fprintln(out, "  --log-file <path>   Log to a rotated file instead of stderr")
}

// fprintln writes a line, ignoring I/O errors on the output streams.
func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
