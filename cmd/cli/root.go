package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type rootOptions struct {
	addr       string
	caPath     string
	skipVerify bool
	plaintext  bool
	timeout    time.Duration

	// connect is dial outside tests.
	connect func(ctx context.Context, o *rootOptions, bearer string) (caller, func() error, error)
}

type authMode int

const (
	authNone authMode = iota
	authOptional
	authRequired
)

// args builds a request from positional arguments and flags.
type args func(cmd *cobra.Command, argv []string) (map[string]any, error)

// handle consumes a response; the default prints it.
type handle func(cmd *cobra.Command, out *structpb.Struct) error

func newRootCommand(o *rootOptions) *cobra.Command {
	if o.connect == nil {
		o.connect = dial
	}

	cmd := &cobra.Command{
		Use:           "tl",
		Short:         "trustlend command-line client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.addr, "addr", "localhost:8443", "server address")
	pf.StringVar(&o.caPath, "cacert", "", "CA certificate (PEM)")
	pf.BoolVar(&o.skipVerify, "insecure", false, "skip certificate verification (dev)")
	pf.BoolVar(&o.plaintext, "plaintext", false, "connect without TLS (dev)")
	pf.DurationVar(&o.timeout, "timeout", 30*time.Second, "per-command timeout")

	cmd.AddCommand(
		newVersionCommand(),
		newRegisterCommand(o),
		newLoginCommand(o),
		newLogoutCommand(),
		newTrustCommand(o),
		newItemCommand(o),
		newLoanCommand(o),
		newScanCommand(o),
	)
	return cmd
}

func printStruct(cmd *cobra.Command, out *structpb.Struct) error {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

// rpc returns a RunE that calls method with the built request.
func (o *rootOptions) rpc(method string, mode authMode, build args, after handle) func(*cobra.Command, []string) error {
	if after == nil {
		after = printStruct
	}
	return func(cmd *cobra.Command, argv []string) error {
		var req map[string]any
		if build != nil {
			var err error
			if req, err = build(cmd, argv); err != nil {
				return err
			}
		}
		in, err := structpb.NewStruct(req)
		if err != nil {
			return err
		}

		var token string
		switch mode {
		case authRequired:
			if token, err = loadToken(); err != nil {
				return err
			}
		case authOptional:
			token, _ = loadToken()
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
		defer cancel()
		c, closeFn, err := o.connect(ctx, o, token)
		if err != nil {
			return err
		}
		defer func() { _ = closeFn() }()

		out, err := c.Call(ctx, method, in)
		if err != nil {
			return err
		}
		return after(cmd, out)
	}
}
