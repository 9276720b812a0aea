package main

import (
	"fmt"
	"log"

	"github.com/urfave/cli"

	"github.com/pedroswe/decide/candidacy"
)

func actionValidate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		log.Fatal("decide: validate needs a candidate file")
	}

	ds, err := candidacy.ReadFile(path, c.String("sheet"))
	if err != nil {
		log.Fatal(err)
	}

	if err := candidacy.Validate(ds); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s: %d candidates accepted\n", path, len(ds.Records))
	return nil
}
