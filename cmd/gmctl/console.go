// cmd/gmctl/console.go
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"

	"greymatter/pkg/greymatter"
)

const (
	prompt          = "gm> "
	historyFileName = ".gmctl_history"
	historySize     = 500
)

// lineReader is the input side of the console
type lineReader interface {
	GetLine(prompt string) (string, error)
	Close() error
}

// LineEditor reads console lines with readline when stdin is a terminal
// and with a plain scanner otherwise.
type LineEditor struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
	out     io.Writer
}

// NewLineEditor creates a line editor for stdin
func NewLineEditor() *LineEditor {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return newScannerEditor(os.Stdin, os.Stdout)
	}

	cfg := &readline.Config{
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.HistoryFile = filepath.Join(home, historyFileName)
	}

	rl, err := readline.NewFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return newScannerEditor(os.Stdin, os.Stdout)
	}
	return &LineEditor{rl: rl}
}

func newScannerEditor(in io.Reader, out io.Writer) *LineEditor {
	return &LineEditor{scanner: bufio.NewScanner(in), out: out}
}

// GetLine prints prompt and returns the next line. io.EOF signals the end
// of input, including Ctrl-C in a terminal.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.rl != nil {
		le.rl.SetPrompt(prompt)
		line, err := le.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				return "", io.EOF
			}
			return "", err
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			le.rl.SaveToHistory(trimmed)
		}
		return line, nil
	}

	fmt.Fprint(le.out, prompt)
	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Close releases the terminal
func (le *LineEditor) Close() error {
	if le.rl != nil {
		return le.rl.Close()
	}
	return nil
}

// commander is the part of the controller the console drives
type commander interface {
	Command(cmd string) (string, error)
}

var _ commander = (*greymatter.Controller)(nil)

// repl sends each non-empty line until end of input or quit. Failed
// commands are reported and the loop continues.
func repl(in lineReader, gm commander, out io.Writer) error {
	for {
		line, err := in.GetLine(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		cmd := strings.TrimSpace(line)
		switch strings.ToLower(cmd) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		execute(gm, cmd, out)
	}
}

// execute sends one command and prints its body or error. It reports
// whether the command succeeded.
func execute(gm commander, cmd string, out io.Writer) bool {
	resp, err := gm.Command(cmd)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return false
	}
	if resp != "" {
		fmt.Fprintln(out, resp)
	}
	return true
}
