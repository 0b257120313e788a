/*
Package console is the production decision port: a blocking prompt protocol
on stdin/stdout for the operator resolving links the rules could not.

PROTOCOL:
  For every unresolved record the port prints the record, then the candidate
  rows grouped under their strategy headings, then reads one line:
    <number>  link to that id (confirmation follows)
    skip      leave this record for a later run
    next      stop asking about this table
    exit      stop the whole run
  Anything else re-prints the instructions. Confirmations accept yes/no only
  and re-prompt until they get one.
*/
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/evaigen/auto-office/reconcile"
)

const border = "================================================================"

// Port reads operator decisions line by line.
type Port struct {
	in  *bufio.Scanner
	out io.Writer
}

// New builds a port over the given streams. Production passes os.Stdin and
// os.Stdout; tests pass buffers.
func New(in io.Reader, out io.Writer) *Port {
	return &Port{in: bufio.NewScanner(in), out: out}
}

// Ask presents one unresolved record and blocks until the operator produces
// a valid decision. Closing the input stream counts as exit.
func (p *Port) Ask(ctx context.Context, prompt reconcile.Prompt) (reconcile.Decision, error) {
	fmt.Fprintln(p.out, border)
	fmt.Fprintln(p.out, "Updating record:")
	fmt.Fprintln(p.out, prompt.Record)
	fmt.Fprintln(p.out)

	if len(prompt.Candidates) == 0 {
		fmt.Fprintln(p.out, "No matching records found.")
	}
	lastLabel := ""
	for _, c := range prompt.Candidates {
		if c.Label != lastLabel {
			fmt.Fprintln(p.out, c.Label)
			lastLabel = c.Label
		}
		fmt.Fprintln(p.out, c.Detail)
		fmt.Fprintln(p.out)
	}

	for {
		if err := ctx.Err(); err != nil {
			return reconcile.Decision{}, err
		}
		fmt.Fprintf(p.out, "Input a %s number to link, or skip / next / exit\n", prompt.Field)
		fmt.Fprint(p.out, "Your input: ")

		line, ok := p.readLine()
		if !ok {
			return reconcile.Decision{Kind: reconcile.DecisionExit}, nil
		}
		switch line {
		case "skip":
			return reconcile.Decision{Kind: reconcile.DecisionSkip}, nil
		case "next":
			return reconcile.Decision{Kind: reconcile.DecisionNext}, nil
		case "exit":
			return reconcile.Decision{Kind: reconcile.DecisionExit}, nil
		}
		if id, err := strconv.ParseInt(line, 10, 64); err == nil && id > 0 {
			return reconcile.Decision{Kind: reconcile.DecisionLink, ID: id}, nil
		}
		fmt.Fprintf(p.out, "Did not understand %q.\n", line)
	}
}

// Confirm blocks until the operator answers yes or no.
func (p *Port) Confirm(ctx context.Context, detail string) (bool, error) {
	fmt.Fprintln(p.out, detail)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprint(p.out, "Proceed? (yes/no): ")

		line, ok := p.readLine()
		if !ok {
			return false, nil
		}
		switch line {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer yes or no.")
	}
}

func (p *Port) readLine() (string, bool) {
	if !p.in.Scan() {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(p.in.Text())), true
}
