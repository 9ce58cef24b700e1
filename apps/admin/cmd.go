package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/storage"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf      *core.Config
	logger    core.Logger
	out       io.Writer
	openStore func(ctx context.Context, conf *core.Config, logger core.Logger) (storage.Store, error)
	openDB    func(conf *core.Config) (*sql.DB, error)
}

// closeStore closes the store of a command. A failed close is logged & returned unless the command already failed.
func (cli *commandLine) closeStore(store storage.Store, errp *error) {
	if err := store.Close(); err != nil {
		cli.logger.Error(fmt.Sprintf("closing %s store: %v", cli.conf.Store.Backend, err), err)
		if *errp == nil {
			*errp = fmt.Errorf("closing store: %w", err)
		}
	}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]   - run goose COMMAND against the database (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  check [-dry-run]         - run one reconciliation pass against the configured store")
	fmt.Fprintln(cli.out, "  seed -file PATH [-merge] - load a JSON document under the store root")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	checkCmd := flag.NewFlagSet("check", flag.ContinueOnError)
	checkCmd.SetOutput(cli.out)
	checkDryRun := checkCmd.Bool("dry-run", false, "Print the answers that would be marked overdue without writing them.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedCmd.SetOutput(cli.out)
	seedFile := seedCmd.String("file", "", "JSON file holding the classes document.")
	seedMerge := seedCmd.Bool("merge", false, "Replace only the classes present in the file instead of the whole root.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "check":
		if err := checkCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.check(*checkDryRun)
	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(*seedFile, *seedMerge)
	default:
		cli.printUsage()
		return errHelp
	}
}
