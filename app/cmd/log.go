package cmd

import (
	"github.com/urfave/cli"

	"github.com/gfiber/diagd/pkg/diag"
)

func LogCmd() cli.Command {
	return cli.Command{
		Name:  "log",
		Usage: "Download a log file kept by diagd",
		Subcommands: []cli.Command{
			requestCmd("monitor", "Download the diagd monitor log", diag.ReqGetMonLog, false),
			requestCmd("results", "Download the diagnostic test results", diag.ReqGetDiagResultLog, false),
			requestCmd("moca", "Download the MoCA driver log", diag.ReqMocaGetMocaLog, false),
		},
	}
}
