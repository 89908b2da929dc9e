package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-wssec/pkg/security"
	"github.com/sirosfoundation/go-wssec/pkg/wss"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a secured SOAP message",
	Long: `Verifies the security header of a message, prints the authenticated principal,
the observed security events and the policy verdict. The decrypted message is
written to --out when it is set. The command fails if a token is rejected or
the policy is violated.`,
	Example: `  wssec verify --config wssec.yaml --in secured.xml`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.close()

		ctx := commandContext(cmd)
		cache, closeReplay, err := env.cfg.OpenReplay(ctx)
		if err != nil {
			return fmt.Errorf("opening replay cache: %w", err)
		}
		defer closeReplay(ctx)

		props, p, err := env.cfg.InboundProperties(env.crypto, cache)
		if err != nil {
			return err
		}
		v, err := wss.NewInbound(props, append(env.opts, wss.WithPolicy(p))...)
		if err != nil {
			return err
		}
		in, err := openInput(cmd)
		if err != nil {
			return err
		}
		defer in.Close()

		var buf bytes.Buffer
		res, err := v.Process(ctx, in, &buf)
		if err != nil {
			return fmt.Errorf("message rejected (%s): %w", security.FaultCode(err).Local, err)
		}
		report(cmd.ErrOrStderr(), res)
		if err := res.Err(); err != nil {
			return err
		}
		if outPath != "-" {
			return writeOutput(cmd, buf.Bytes())
		}
		return nil
	},
}

func report(w io.Writer, res *wss.Result) {
	fmt.Fprintf(w, "principal: %s\n", res.Principal)
	fmt.Fprintln(w, "events:")
	for _, ev := range res.Events {
		fmt.Fprintf(w, "  %s\n", describe(ev))
	}
	if res.Verdict.Passed {
		fmt.Fprintln(w, "verdict: pass")
		return
	}
	fmt.Fprintln(w, "verdict: fail")
	for _, v := range res.Verdict.Violations {
		fmt.Fprintf(w, "  %s\n", v)
	}
}

func describe(ev security.Event) string {
	switch e := ev.(type) {
	case security.SignedPartEvent:
		return fmt.Sprintf("%s %s signed=%t", e.Type(), e.Element, !e.NotSigned)
	case security.SignedElementEvent:
		return fmt.Sprintf("%s %s signed=%t", e.Type(), e.Element, !e.NotSigned)
	case security.EncryptedPartEvent:
		return fmt.Sprintf("%s %s encrypted=%t", e.Type(), e.Element, !e.NotEncrypted)
	case security.EncryptedElementEvent:
		return fmt.Sprintf("%s %s encrypted=%t", e.Type(), e.Element, !e.NotEncrypted)
	case security.ContentEncryptedElementEvent:
		return fmt.Sprintf("%s %s encrypted=%t", e.Type(), e.Element, !e.NotEncrypted)
	case security.TimestampEvent:
		return fmt.Sprintf("%s created=%s expires=%s", e.Type(), e.Created.Format("2006-01-02T15:04:05Z07:00"), e.Expires.Format("2006-01-02T15:04:05Z07:00"))
	case security.TokenEvent:
		return fmt.Sprintf("%s id=%s principal=%s", e.Type(), e.TokenID, e.Principal)
	default:
		return string(ev.Type())
	}
}
