package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/gfiber/diagd/pkg/diag"
)

func RunTestsCmd() cli.Command {
	return cli.Command{
		Name:  "run-tests",
		Usage: "Run the loopback test on the device; the device reboots afterwards",
		Flags: append(clientFlags(), cli.BoolFlag{
			Name:  "yes",
			Usage: "Confirm that the device may reboot",
		}),
		Action: func(c *cli.Context) {
			if err := runTests(c); err != nil {
				logrus.WithError(err).Fatalf("Error running run-tests command")
			}
		},
	}
}

func runTests(c *cli.Context) error {
	if !c.Bool("yes") {
		return errors.New("the device reboots after the tests, pass --yes to confirm")
	}
	if _, err := getClient(c).Fetch(context.Background(), diag.ReqRunTests); err != nil {
		return err
	}
	logrus.Infof("Tests started on %v, the device will reboot when they finish", c.GlobalString("url"))
	return nil
}
