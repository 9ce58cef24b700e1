package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-checker/core/reconcile"
)

func (cli *commandLine) check(dryRun bool) (err error) {
	ctx := context.Background()
	store, err := cli.openStore(ctx, cli.conf, cli.logger)
	if err != nil {
		return err
	}
	defer cli.closeStore(store, &err)

	driver := reconcile.NewDriver(store, reconcile.Options{
		Root:     cli.conf.Store.Root,
		Location: cli.conf.Checker.Location,
		Logger:   cli.logger,
	})
	res, err := driver.Trigger(ctx, reconcile.TriggerOptions{DryRun: dryRun})
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "pass %s: %d answer(s) in %d class(es), %d malformed record(s)\n", res.ID, res.Answers, res.Classes, res.Malformed)
	for _, p := range res.Changes.Paths() {
		fmt.Fprintf(cli.out, "  %s/%s -> %s\n", cli.conf.Store.Root, p, res.Changes[p])
	}
	switch {
	case res.Changes.IsEmpty():
		fmt.Fprintln(cli.out, "nothing overdue")
	case res.DryRun:
		fmt.Fprintf(cli.out, "dry run: %d answer(s) would be marked overdue\n", res.Changes.Len())
	default:
		fmt.Fprintf(cli.out, "committed: %d answer(s) marked overdue\n", res.Changes.Len())
	}
	return nil
}
