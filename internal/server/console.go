package server

import (
	"bufio"
	"io"
	"os"
	"strings"

	"braces.dev/errtrace"
	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

// QuitCommand is the console input that shuts the proxy down
const QuitCommand = ".q"

const consolePrompt = "Type '.q' to exit: "

// NewConsole returns an interactive prompt when in is a terminal and a plain
// line reader otherwise
func NewConsole(in *os.File) Console {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		return &promptConsole{}
	}
	return NewReaderConsole(in)
}

// promptConsole reads commands with line editing and history
type promptConsole struct {
	history []string
}

func completer(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: QuitCommand, Description: "Stop the proxy"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func (c *promptConsole) WaitForQuit() error {
	for {
		t := prompt.Input(consolePrompt, completer,
			prompt.OptionTitle("sipproxy"),
			prompt.OptionHistory(c.history),
			prompt.OptionPrefixTextColor(prompt.Yellow),
			prompt.OptionPreviewSuggestionTextColor(prompt.Blue),
			prompt.OptionSelectedSuggestionBGColor(prompt.LightGray),
			prompt.OptionSuggestionBGColor(prompt.DarkGray))

		if strings.TrimSpace(t) == QuitCommand {
			return nil
		}
		if t != "" {
			c.history = append(c.history, t)
		}
	}
}

// ReaderConsole reads one command per line from a reader
type ReaderConsole struct {
	in io.Reader
}

// NewReaderConsole creates a console reading commands from in
func NewReaderConsole(in io.Reader) *ReaderConsole {
	return &ReaderConsole{in: in}
}

func (c *ReaderConsole) WaitForQuit() error {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == QuitCommand {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return errtrace.Wrap(err)
	}
	return errtrace.Wrap(io.EOF)
}
