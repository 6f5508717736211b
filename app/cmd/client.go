package cmd

import (
	"context"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/gfiber/diagd/pkg/client"
	"github.com/gfiber/diagd/pkg/diag"
)

func outputFlag() cli.Flag {
	return cli.StringFlag{
		Name:  "output, o",
		Usage: "Write the response to this file instead of stdout",
	}
}

func requestCmd(name, usage string, op diag.RequestType, binary bool) cli.Command {
	flags := append(clientFlags(), outputFlag())
	if binary {
		flags = append(flags, cli.BoolFlag{
			Name:  "raw",
			Usage: "Write the record as received instead of a hex dump",
		})
	}
	return cli.Command{
		Name:  name,
		Usage: usage,
		Flags: flags,
		Action: func(c *cli.Context) {
			if err := download(c, op, binary && !c.Bool("raw")); err != nil {
				logrus.WithError(err).Fatalf("Error running %v command", name)
			}
		},
	}
}

// download runs op and writes the payload to --output or stdout. Records are
// hex dumped unless asHex is false.
func download(c *cli.Context, op diag.RequestType, asHex bool) (err error) {
	stream, err := getClient(c).Open(context.Background(), op)
	if err != nil {
		return err
	}
	defer stream.Close()

	if stream.Header.Len == 0 {
		return errors.Wrapf(client.ErrEmptyResponse, "%v", op)
	}

	var (
		out     io.Writer = os.Stdout
		payload io.Reader = stream.Payload
	)
	if output := c.String("output"); output != "" {
		f, err := os.Create(output)
		if err != nil {
			return errors.Wrapf(err, "failed to create %v", output)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()

		bar := pb.Start64(int64(stream.Header.Len))
		bar.Set(pb.Bytes, true)
		defer bar.Finish()
		out = f
		payload = bar.NewProxyReader(payload)
	}

	if asHex {
		dumper := hex.Dumper(out)
		defer dumper.Close()
		out = dumper
	}

	n, err := io.Copy(out, payload)
	if err != nil {
		return errors.Wrapf(err, "failed after %d of %d bytes", n, stream.Header.Len)
	}
	logrus.Debugf("Received %d bytes for %v", n, op)
	return nil
}
