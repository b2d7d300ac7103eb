package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/effective-security/credible/cmd/credible-tool/cli"
	"github.com/effective-security/credible/internal/version"
	"github.com/effective-security/x/ctl"
)

type app struct {
	cli.Cli

	Issue    cli.IssueCmd    `cmd:"" help:"issue token"`
	Validate cli.ValidateCmd `cmd:"" help:"validate token and print claims"`
	Decode   cli.DecodeCmd   `cmd:"" help:"print token without verification"`
	Jwks     cli.JWKSCmd     `cmd:"" help:"print public keys of the provider"`
	Genkey   cli.GenKeyCmd   `cmd:"" help:"generate signing key"`
}

func main() {
	realMain(os.Args, os.Stdout, os.Stderr, os.Exit)
}

func realMain(args []string, out io.Writer, errout io.Writer, exit func(int)) {
	cl := app{
		Cli: cli.Cli{},
	}
	cl.Cli.WithErrWriter(errout).
		WithWriter(out)

	parser, err := kong.New(&cl,
		kong.Name("credible-tool"),
		kong.Description("JWT issuance and verification tools"),
		kong.Writers(out, errout),
		kong.Exit(exit),
		ctl.BoolPtrMapper,
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version.Current().String(),
		})
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args[1:])
	parser.FatalIfErrorf(err)

	if ctx != nil {
		err = ctx.Run(&cl.Cli)
		ctx.FatalIfErrorf(err)
	}
}
