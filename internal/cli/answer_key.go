package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrlokans/courseimport/internal/answerkey"
)

// AnswerKeyCommand parses a local text export of a test document, for checking how a
// hand-written answer key will be read before importing it.
type AnswerKeyCommand struct {
	File string

	in  io.Reader
	out io.Writer
}

func NewAnswerKeyCommand() *AnswerKeyCommand {
	return &AnswerKeyCommand{in: os.Stdin, out: os.Stdout}
}

func (cmd *AnswerKeyCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("answer-key", flag.ExitOnError)

	fs.StringVar(&cmd.File, "file", "", "Plain text file to parse; '-' reads stdin (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s answer-key -file <path>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print the answer key found in a test document as YAML.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.File == "" {
		fs.Usage()
		return fmt.Errorf("file is required")
	}

	return nil
}

func (cmd *AnswerKeyCommand) Run() error {
	var data []byte
	var err error
	if cmd.File == "-" {
		data, err = io.ReadAll(cmd.in)
	} else {
		data, err = os.ReadFile(cmd.File)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cmd.File, err)
	}

	entries := answerkey.Parse(string(data))
	if len(entries) == 0 {
		fmt.Fprintln(cmd.out, "# no answer key found")
		return nil
	}

	enc := yaml.NewEncoder(cmd.out)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode answer key: %w", err)
	}
	return enc.Close()
}
