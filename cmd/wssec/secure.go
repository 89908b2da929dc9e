package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-wssec/pkg/wss"
)

var secureCmd = &cobra.Command{
	Use:     "secure",
	Short:   "Add a security header to a SOAP message",
	Example: `  wssec secure --config wssec.yaml --in msg.xml --out secured.xml`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.close()

		out, err := wss.NewOutbound(env.cfg.OutboundProperties(env.crypto), env.opts...)
		if err != nil {
			return err
		}
		in, err := openInput(cmd)
		if err != nil {
			return err
		}
		defer in.Close()

		var buf bytes.Buffer
		res, err := out.Process(commandContext(cmd), in, &buf)
		if err != nil {
			return fmt.Errorf("securing message: %w", err)
		}
		if res.Principal != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "secured for %s\n", res.Principal)
		}
		return writeOutput(cmd, buf.Bytes())
	},
}
