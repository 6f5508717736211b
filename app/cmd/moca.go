package cmd

import (
	"github.com/urfave/cli"

	"github.com/gfiber/diagd/pkg/diag"
)

func MocaCmd() cli.Command {
	return cli.Command{
		Name:  "moca",
		Usage: "Query the MoCA interface through diagd",
		Subcommands: []cli.Command{
			requestCmd("conn-info", "Per-node connection information", diag.ReqMocaGetConnInfo, true),
			requestCmd("init-parms", "Initialization parameters", diag.ReqMocaGetMocaInitParms, true),
			requestCmd("status", "Interface status", diag.ReqMocaGetStatus, true),
			requestCmd("config", "Interface configuration", diag.ReqMocaGetConfig, true),
			requestCmd("node-status", "Status table of connected nodes", diag.ReqMocaGetNodeStatusTbl, true),
			requestCmd("node-stats", "Statistics table of connected nodes", diag.ReqMocaGetNodeStatsTbl, true),
		},
	}
}
