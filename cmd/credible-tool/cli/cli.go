package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/jwt"
	"github.com/effective-security/credible/x/print"
	"github.com/effective-security/x/ctl"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/credible", "cli")

// Cli provides CLI context to run commands
type Cli struct {
	Version ctl.VersionFlag `name:"version" help:"Print version information and quit" hidden:""`

	Cfg      string `help:"Location of token provider config file" env:"CREDIBLE_CONFIG"`
	Debug    bool   `short:"D" help:"Enable debug mode"`
	LogLevel string `short:"l" help:"Set the logging level (debug|info|warn|error)" default:"error"`
	Output   string `short:"o" help:"Output format (json|yaml)" enum:"json,yaml" default:"json"`

	// Stdin is the source to read from, typically set to os.Stdin
	stdin io.Reader
	// Output is the destination for all output from the command, typically set to os.Stdout
	output io.Writer
	// ErrOutput is the destinaton for errors.
	// If not set, errors will be written to os.StdError
	errOutput io.Writer

	ctx      context.Context
	provider *jwt.Provider
}

// Context for requests
func (c *Cli) Context() context.Context {
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	return c.ctx
}

// Reader is the source to read from, typically set to os.Stdin
func (c *Cli) Reader() io.Reader {
	if c.stdin != nil {
		return c.stdin
	}
	return os.Stdin
}

// WithReader allows to specify a custom reader
func (c *Cli) WithReader(reader io.Reader) *Cli {
	c.stdin = reader
	return c
}

// Writer returns a writer for control output
func (c *Cli) Writer() io.Writer {
	if c.output != nil {
		return c.output
	}
	return os.Stdout
}

// WithWriter allows to specify a custom writer
func (c *Cli) WithWriter(out io.Writer) *Cli {
	c.output = out
	return c
}

// ErrWriter returns a writer for control output
func (c *Cli) ErrWriter() io.Writer {
	if c.errOutput != nil {
		return c.errOutput
	}
	return os.Stderr
}

// WithErrWriter allows to specify a custom error writer
func (c *Cli) WithErrWriter(out io.Writer) *Cli {
	c.errOutput = out
	return c
}

// AfterApply hook sets the log level
func (c *Cli) AfterApply(_ *kong.Kong, _ kong.Vars) error {
	if c.Debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
		return nil
	}
	val := strings.TrimLeft(c.LogLevel, "=")
	if val == "" {
		val = "error"
	}
	l, err := xlog.ParseLevel(strings.ToUpper(val))
	if err != nil {
		return errors.WithStack(err)
	}
	xlog.SetGlobalLogLevel(l)
	return nil
}

// Provider returns token provider loaded from --cfg
func (c *Cli) Provider() (*jwt.Provider, error) {
	if c.provider == nil {
		if c.Cfg == "" {
			return nil, errors.New("specify --cfg flag")
		}
		p, err := jwt.LoadProvider(c.Cfg)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to load provider")
		}
		logger.KV(xlog.DEBUG, "cfg", c.Cfg, "issuer", p.Issuer(), "alg", p.Algorithm(), "kid", p.KeyID())
		c.provider = p
	}
	return c.provider, nil
}

// WithProvider allows to specify a custom provider
func (c *Cli) WithProvider(p *jwt.Provider) *Cli {
	c.provider = p
	return c
}

// WriteJSON prints response to out
func (c *Cli) WriteJSON(value any) error {
	return print.JSON(c.Writer(), value)
}

// WriteObject prints response to out in the format specified by --output
func (c *Cli) WriteObject(value any) error {
	return print.Object(c.Writer(), c.Output, value)
}

// ReadFile reads from stdin if the file is "-"
func (c *Cli) ReadFile(filename string) ([]byte, error) {
	if filename == "" {
		return nil, errors.New("empty file name")
	}
	if filename == "-" {
		return io.ReadAll(c.Reader())
	}
	return os.ReadFile(filename)
}
