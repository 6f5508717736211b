package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/gfiber/diagd/app/cmd"
	"github.com/gfiber/diagd/pkg/meta"
)

func main() {
	a := cli.NewApp()
	a.Name = "diagd"
	a.Usage = "Diagnostic command daemon and client"
	a.Version = meta.Version
	a.Before = func(c *cli.Context) error {
		if c.GlobalBool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	a.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "url",
			Value:  "localhost" + cmd.DefaultListen,
			EnvVar: "DIAGD_URL",
			Usage:  "Address of the diagd server used by the client commands",
		},
		cli.BoolFlag{
			Name: "debug",
		},
	}
	a.Commands = []cli.Command{
		cmd.ServerCmd(),
		cmd.LogCmd(),
		cmd.MocaCmd(),
		cmd.RunTestsCmd(),
		cmd.VersionCmd(),
	}
	if err := a.Run(os.Args); err != nil {
		logrus.Fatal("Error when executing command: ", err)
	}
}
