package main

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/urfave/cli"

	"github.com/pedroswe/decide/decide"
)

func actionSetupDB(c *cli.Context) error {
	if err := bootstrap(c); err != nil {
		log.Fatal(err)
	}
	defer Store.Close()

	if err := Store.Setup(); err != nil {
		log.Fatal("Error loading database schema: ", err)
	}

	fmt.Println("Database set-up complete.")
	return nil
}

func actionAdminCreateKey(c *cli.Context) error {
	if err := bootstrap(c); err != nil {
		log.Fatal(err)
	}
	defer Store.Close()

	voting := loadVoting(c)

	if err := Orchestrator.ProvisionKey(voting); err != nil {
		log.Fatal(err)
	}

	if voting.PubKey == nil {
		// No-op: either the key already existed before this process or
		// the voting has no authorities attached.
		fmt.Printf("voting %d: no key provisioned (no authorities attached)\n", voting.ID)
		return nil
	}
	fmt.Printf("voting %d: public key set\n", voting.ID)
	return nil
}

func actionAdminTally(c *cli.Context) error {
	if err := bootstrap(c); err != nil {
		log.Fatal(err)
	}
	defer Store.Close()

	voting := loadVoting(c)

	if err := Orchestrator.Tally(voting, c.String("token")); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("voting %d: tallied and processed\n", voting.ID)
	if voting.StartDate != nil {
		fmt.Printf("  opened %s\n", voting.StartDate.Format(time.RFC1123Z))
	}
	if voting.EndDate != nil {
		fmt.Printf("  closed %s\n", voting.EndDate.Format(time.RFC1123Z))
	}
	for _, opt := range voting.Question.Options {
		fmt.Printf("  %s: %d votes\n", opt, voting.CountVotes(opt.Number))
	}
	return nil
}

func loadVoting(c *cli.Context) *decide.Voting {
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		log.Fatal("decide: expected a numeric voting id: ", err)
	}

	voting, err := Store.GetVoting(id)
	if err != nil {
		log.Fatal(err)
	}
	return voting
}
