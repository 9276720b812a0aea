// Command decide is the admin CLI for the tally orchestration: it
// validates candidacy uploads, provisions voting keys and closes votings
// by running the mix and post-processing their results.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli"

	"github.com/pedroswe/decide/clients/ballotstore"
	"github.com/pedroswe/decide/clients/mixnet"
	"github.com/pedroswe/decide/clients/postproc"
	"github.com/pedroswe/decide/tally"
	"github.com/pedroswe/decide/votingdb"
)

// Version specifies the version of this binary
var Version = "0.1"

// Conf holds the parsed config file
var Conf *Config

// Store is the entity database
var Store *votingdb.Store

// Orchestrator drives votings through key provisioning, tally and
// post-processing
var Orchestrator *tally.Orchestrator

func main() {
	app := cli.NewApp()
	app.Name = "decide"
	app.Usage = "administer votings: validate candidacies, provision keys, run tallies"
	app.Version = Version

	// Global options
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: "./decide.conf",
			Usage: "path to config file",
		},
	}

	// Commands
	app.Commands = []cli.Command{
		{
			Name:      "validate",
			Usage:     "validate an uploaded candidate list",
			Action:    actionValidate,
			ArgsUsage: "[candidatefile]",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "sheet",
					Value: "",
					Usage: "workbook sheet holding the candidate list",
				},
			},
		},
		{
			Name:   "setup-db",
			Usage:  "set up fresh database tables and schema",
			Action: actionSetupDB,
		},
		{
			Name:  "admin",
			Usage: "perform voting administrative operations",
			Subcommands: []cli.Command{
				{
					Name:      "create-key",
					Usage:     "provision the public key for a voting",
					Action:    actionAdminCreateKey,
					ArgsUsage: "[voting-id]",
				},
				{
					Name:      "tally",
					Usage:     "close a voting: collect, mix, decrypt and post-process",
					Action:    actionAdminTally,
					ArgsUsage: "[voting-id]",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "token",
							Value: "",
							Usage: "ballot store auth token",
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// bootstrap parses the config file and wires the database and service
// clients. Actions that need infrastructure call it first; `validate`
// works without it.
func bootstrap(c *cli.Context) error {
	conf, err := NewConfig(c.GlobalString("config"))
	if err != nil {
		return err
	}
	Conf = conf

	Store, err = votingdb.Open(conf.databaseConnectionString(), conf.database.maxIdleConnections)
	if err != nil {
		return err
	}

	ballots := ballotstore.NewClient(conf.storeURL)
	post := postproc.NewClient(conf.postprocURL)
	if conf.timeout != 0 {
		ballots.HTTPClient.Timeout = conf.timeout
		post.HTTPClient.Timeout = conf.timeout
	}

	dial := func(baseurl string) tally.Mixnet {
		client := mixnet.NewClient(baseurl)
		client.KeyBits = conf.keyBits
		if conf.timeout != 0 {
			client.HTTPClient.Timeout = conf.timeout
		}
		return client
	}

	Orchestrator = tally.New(Store, ballots, post, dial)
	return nil
}
