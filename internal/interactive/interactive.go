// Package interactive asks the user to fill in choices the command line left
// open: pick a model, an extractor, a document or a schema from a numbered
// list, enter a run count, and confirm the assembled configuration.
package interactive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// ErrNoChoices is returned when a selection has nothing to choose from.
var ErrNoChoices = errors.New("nothing to choose from")

// maxAttempts bounds re-prompting after invalid input.
const maxAttempts = 3

// Choice is one selectable entry.
type Choice struct {
	Key         string
	Description string
}

// Prompter reads answers line by line. At end of input every question takes
// its default, so piped or empty stdin behaves like pressing enter.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a prompter reading from in and writing questions to out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// readLine returns the next trimmed line and whether input is exhausted.
func (p *Prompter) readLine() (string, bool, error) {
	line, err := p.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		return strings.TrimSpace(line), true, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(line), false, nil
}

// Select asks for one of choices. def pre-selects a key; when it is empty or
// not among choices the first entry is the default. A single choice is
// selected without asking. Answers may be a list number or a key.
func (p *Prompter) Select(title string, choices []Choice, def string) (string, error) {
	if len(choices) == 0 {
		return "", fmt.Errorf("%s: %w", title, ErrNoChoices)
	}
	if len(choices) == 1 {
		fmt.Fprintf(p.out, "%s: %s\n", title, choices[0].Key)
		return choices[0].Key, nil
	}

	defIdx := 0
	for i, c := range choices {
		if c.Key == def {
			defIdx = i
		}
	}

	fmt.Fprintf(p.out, "\n%s:\n", title)
	for i, c := range choices {
		marker := ""
		if i == defIdx {
			marker = " (default)"
		}
		if c.Description != "" {
			fmt.Fprintf(p.out, "  %d. %s%s - %s\n", i+1, c.Key, marker, c.Description)
		} else {
			fmt.Fprintf(p.out, "  %d. %s%s\n", i+1, c.Key, marker)
		}
	}

	for range maxAttempts {
		fmt.Fprintf(p.out, "Select a number [%d]: ", defIdx+1)
		answer, eof, err := p.readLine()
		if err != nil {
			return "", err
		}
		if answer == "" {
			if eof {
				fmt.Fprintln(p.out)
			}
			return choices[defIdx].Key, nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(choices) {
			return choices[n-1].Key, nil
		}
		for _, c := range choices {
			if c.Key == answer {
				return c.Key, nil
			}
		}
		fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(choices))
		if eof {
			break
		}
	}
	return "", fmt.Errorf("%s: no valid selection", title)
}

// Int asks for an integer of at least min.
func (p *Prompter) Int(title string, def, min int) (int, error) {
	for range maxAttempts {
		fmt.Fprintf(p.out, "%s [%d]: ", title, def)
		answer, eof, err := p.readLine()
		if err != nil {
			return 0, err
		}
		if answer == "" {
			if eof {
				fmt.Fprintln(p.out)
			}
			return def, nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= min {
			return n, nil
		}
		fmt.Fprintf(p.out, "Please enter a whole number of at least %d.\n", min)
		if eof {
			break
		}
	}
	return 0, fmt.Errorf("%s: no valid number", title)
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(title string, def bool) (bool, error) {
	hint := "Y/n"
	if !def {
		hint = "y/N"
	}
	for range maxAttempts {
		fmt.Fprintf(p.out, "%s [%s]: ", title, hint)
		answer, eof, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			if eof {
				fmt.Fprintln(p.out)
			}
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
		if eof {
			break
		}
	}
	return false, fmt.Errorf("%s: no valid answer", title)
}

// Field is one row of a Panel.
type Field struct {
	Name  string
	Value string
}

// Panel prints a titled two-column summary.
func (p *Prompter) Panel(title string, fields []Field) {
	fmt.Fprintf(p.out, "\n%s\n", title)
	table := tablewriter.NewWriter(p.out)
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	for _, f := range fields {
		table.Append([]string{f.Name, f.Value})
	}
	table.Render()
}
