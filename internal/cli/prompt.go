package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora/v3"
	"github.com/lupa/roster"
	"github.com/pkg/errors"
)

var ErrNoTarget = errors.New("no migration target given")

const invalidTarget = "Invalid direction/version."

// ReadTarget parses arg as a migration target. An empty or invalid arg makes
// it prompt on in until a valid answer is read.
func ReadTarget(arg string, in io.Reader, out io.Writer) (roster.Target, error) {
	if arg != "" {
		t, err := roster.ParseTarget(arg)
		if err == nil {
			return t, nil
		}

		fmt.Fprintln(out, aurora.Red(invalidTarget))
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Migrate to [up, down, <version>]: ")

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return roster.Target{}, errors.Wrap(err, "could not read migration target")
			}

			return roster.Target{}, ErrNoTarget
		}

		t, err := roster.ParseTarget(strings.TrimSpace(scanner.Text()))
		if err == nil {
			return t, nil
		}

		fmt.Fprintln(out, aurora.Red(invalidTarget))
	}
}
