package console

import (
	"errors"
	"fmt"
	"strings"
)

// Slash commands accepted on the input line.
const (
	cmdPause     = "pause"
	cmdResume    = "resume"
	cmdShot      = "shot"
	cmdType      = "type"
	cmdUpload    = "upload"
	cmdState     = "state"
	cmdConfig    = "config"
	cmdCommand   = "cmd"
	cmdProfile   = "profile"
	cmdReconnect = "reconnect"
	cmdQuit      = "quit"
	cmdHelp      = "help"
)

var errUnknownCommand = errors.New("unknown command")

const helpText = "/pause /resume /shot /type <text> /upload <file> /state /config <key> <value> /cmd <command> /profile <file.yaml> /reconnect /quit"

// command is one parsed input line. A line without a leading slash is chat.
type command struct {
	name string
	args []string
	text string
}

func (c command) isChat() bool { return c.name == "" }

// parseInput splits an input line into a command. Arguments are kept raw in
// text so /type preserves the operator's spacing.
func parseInput(line string) (command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return command{text: trimmed}, nil
	}

	name, rest, _ := strings.Cut(trimmed[1:], " ")
	name = strings.ToLower(name)
	cmd := command{name: name, args: strings.Fields(rest)}
	if name == cmdType {
		if _, after, ok := strings.Cut(strings.TrimLeft(line, " \t"), " "); ok {
			cmd.text = after
		}
	} else {
		cmd.text = strings.TrimSpace(rest)
	}

	switch name {
	case cmdPause, cmdResume, cmdShot, cmdState, cmdReconnect, cmdQuit, cmdHelp:
		return cmd, nil
	case cmdType:
		if strings.TrimSpace(cmd.text) == "" {
			return command{}, fmt.Errorf("usage: /type <text>")
		}
	case cmdUpload, cmdProfile:
		if cmd.text == "" {
			return command{}, fmt.Errorf("usage: /%s <file>", name)
		}
	case cmdCommand:
		if cmd.text == "" {
			return command{}, fmt.Errorf("usage: /cmd <command>")
		}
	case cmdConfig:
		if len(cmd.args) < 2 {
			return command{}, fmt.Errorf("usage: /config <key> <value>")
		}
		// The value may contain spaces.
		cmd.text = strings.TrimSpace(strings.TrimPrefix(cmd.text, cmd.args[0]))
	default:
		return command{}, fmt.Errorf("%w: /%s", errUnknownCommand, name)
	}
	return cmd, nil
}
