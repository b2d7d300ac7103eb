package cli

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/jwt"
	"github.com/effective-security/credible/x/print"
)

// IssueCmd issues a token
type IssueCmd struct {
	Subject string            `help:"optional, subject claim"`
	Claims  string            `help:"optional, JSON file with claims, or - for stdin"`
	Claim   map[string]string `help:"optional, claim to add as name=value, the value is parsed as JSON if possible"`
	Raw     bool              `help:"print only the token value"`
}

// Run the command
func (a *IssueCmd) Run(ctx *Cli) error {
	p, err := ctx.Provider()
	if err != nil {
		return err
	}

	claims := jwt.NewClaimSet()
	if a.Claims != "" {
		b, err := ctx.ReadFile(a.Claims)
		if err != nil {
			return errors.WithMessage(err, "unable to load claims")
		}
		if err = json.Unmarshal(b, claims); err != nil {
			return errors.WithMessage(err, "unable to parse claims")
		}
	}
	if a.Subject != "" {
		if err = claims.Set(jwt.ClaimSubject, a.Subject); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(a.Claim))
	for name := range a.Claim {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err = claims.Set(name, claimValue(a.Claim[name])); err != nil {
			return err
		}
	}

	token, err := p.Issue(ctx.Context(), claims)
	if err != nil {
		return errors.WithMessage(err, "unable to issue token")
	}

	if a.Raw {
		print.SignedToken(ctx.Writer(), token)
		return nil
	}
	return ctx.WriteObject(token)
}

func claimValue(s string) any {
	var v any
	d := json.NewDecoder(strings.NewReader(s))
	d.UseNumber()
	if err := d.Decode(&v); err != nil || d.More() {
		return s
	}
	return v
}

// ValidateCmd validates a token
type ValidateCmd struct {
	Token string `kong:"arg" required:"" help:"token, file name with token, or - for stdin"`
}

// Run the command
func (a *ValidateCmd) Run(ctx *Cli) error {
	p, err := ctx.Provider()
	if err != nil {
		return err
	}

	token, err := ctx.readToken(a.Token)
	if err != nil {
		return err
	}

	claims, err := p.Validate(ctx.Context(), token)
	if err != nil {
		return errors.WithMessagef(err, "token is not valid: %s", jwt.Kind(err))
	}
	return ctx.WriteObject(claims)
}

// DecodeCmd prints a token without verification
type DecodeCmd struct {
	Token string `kong:"arg" required:"" help:"token, file name with token, or - for stdin"`
}

// Run the command
func (a *DecodeCmd) Run(ctx *Cli) error {
	token, err := ctx.readToken(a.Token)
	if err != nil {
		return err
	}

	t, err := jwt.ParseUnverified(token)
	if err != nil {
		return errors.WithMessage(err, "unable to decode token")
	}
	print.Token(ctx.Writer(), t)
	return nil
}

// JWKSCmd prints public keys of the provider
type JWKSCmd struct{}

// Run the command
func (a *JWKSCmd) Run(ctx *Cli) error {
	p, err := ctx.Provider()
	if err != nil {
		return err
	}
	jwks, err := p.PublicKeys()
	if err != nil {
		return err
	}
	return ctx.WriteJSON(jwks)
}

// readToken returns the token from the argument, a file or stdin
func (c *Cli) readToken(arg string) (string, error) {
	if arg != "-" && strings.Count(arg, ".") == 2 {
		return arg, nil
	}
	b, err := c.ReadFile(arg)
	if err != nil {
		return "", errors.WithMessage(err, "unable to read token")
	}
	return strings.TrimSpace(string(b)), nil
}
