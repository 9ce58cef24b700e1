package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

func (cli *commandLine) seed(path string, merge bool) (err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading seed file")
	}
	var doc map[string]interface{}
	if err = json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "seed file must hold a JSON object")
	}

	ctx := context.Background()
	store, err := cli.openStore(ctx, cli.conf, cli.logger)
	if err != nil {
		return err
	}
	defer cli.closeStore(store, &err)

	root := cli.conf.Store.Root
	if merge {
		err = store.Update(ctx, root, doc)
	} else {
		err = store.Update(ctx, "", map[string]interface{}{root: doc})
	}
	if err != nil {
		return errors.Wrap(err, "writing seed")
	}
	fmt.Fprintf(cli.out, "seeded %d class(es) under %q\n", len(doc), root)
	return nil
}
