// Package worker moves tool execution off the controller: a controller
// sends run requests over a message channel, an executor runs the named
// tool and streams its output back, ending with a single terminal message.
package worker

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/tree"
)

// Request is a controller to executor message: LoadPackages or RunCommand.
type Request interface {
	isRequest()
}

// LoadPackages asks the executor to preload packages. It is accepted and
// ignored.
type LoadPackages struct {
	Names []string
}

// RunCommand asks the executor to run a registered tool.
type RunCommand struct {
	Tool  string
	Args  []string
	Files tree.Tree
}

func (LoadPackages) isRequest() {}
func (RunCommand) isRequest()   {}

// Response is an executor to controller message: StdoutChunk, StderrChunk,
// CommandDone or CommandFailure. For one RunCommand, every chunk precedes
// exactly one CommandDone or CommandFailure.
type Response interface {
	isResponse()
}

// StdoutChunk carries bytes the tool wrote to stdout.
type StdoutChunk struct {
	Data []byte
}

// StderrChunk carries bytes the tool wrote to stderr.
type StderrChunk struct {
	Data []byte
}

// CommandDone reports success with the tool's output tree.
type CommandDone struct {
	Tree tree.Tree
}

// CommandFailure reports a failed command.
type CommandFailure struct {
	Message string
}

func (StdoutChunk) isResponse()    {}
func (StderrChunk) isResponse()    {}
func (CommandDone) isResponse()    {}
func (CommandFailure) isResponse() {}

// IsTerminal reports whether r ends a command.
func IsTerminal(r Response) bool {
	switch r.(type) {
	case CommandDone, CommandFailure:
		return true
	default:
		return false
	}
}

// Wire message types.
const (
	typeLoadPackages   = "loadPackages"
	typeRunCommand     = "runCommand"
	typeStdoutWrite    = "stdoutWrite"
	typeStderrWrite    = "stderrWrite"
	typeCommandDone    = "commandDone"
	typeCommandFailure = "commandFailure"
)

// envelope is the JSON form of every message.
type envelope struct {
	Type    string    `json:"type"`
	Names   []string  `json:"names,omitempty"`
	Name    string    `json:"name,omitempty"`
	Args    []string  `json:"args,omitempty"`
	Files   tree.Tree `json:"files,omitempty"`
	Data    []byte    `json:"data,omitempty"`
	Tree    tree.Tree `json:"tree,omitempty"`
	Message string    `json:"message,omitempty"`
}

// EncodeRequest renders req as JSON.
func EncodeRequest(req Request) ([]byte, error) {
	var env envelope
	switch r := req.(type) {
	case LoadPackages:
		env = envelope{Type: typeLoadPackages, Names: r.Names}
	case RunCommand:
		env = envelope{Type: typeRunCommand, Name: r.Tool, Args: r.Args, Files: r.Files}
	default:
		return nil, protocolError(fmt.Sprintf("unsupported request %T", req))
	}
	return json.Marshal(env)
}

// DecodeRequest parses a JSON request.
func DecodeRequest(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(errors.ErrCodeProtocol, "malformed request", err)
	}
	switch env.Type {
	case typeLoadPackages:
		return LoadPackages{Names: env.Names}, nil
	case typeRunCommand:
		if env.Name == "" {
			return nil, protocolError("runCommand without a tool name")
		}
		return RunCommand{Tool: env.Name, Args: env.Args, Files: orEmpty(env.Files)}, nil
	default:
		return nil, protocolError(fmt.Sprintf("unknown request type %q", env.Type))
	}
}

// EncodeResponse renders resp as JSON.
func EncodeResponse(resp Response) ([]byte, error) {
	var env envelope
	switch r := resp.(type) {
	case StdoutChunk:
		env = envelope{Type: typeStdoutWrite, Data: r.Data}
	case StderrChunk:
		env = envelope{Type: typeStderrWrite, Data: r.Data}
	case CommandDone:
		env = envelope{Type: typeCommandDone, Tree: r.Tree}
	case CommandFailure:
		env = envelope{Type: typeCommandFailure, Message: r.Message}
	default:
		return nil, protocolError(fmt.Sprintf("unsupported response %T", resp))
	}
	return json.Marshal(env)
}

// DecodeResponse parses a JSON response.
func DecodeResponse(data []byte) (Response, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(errors.ErrCodeProtocol, "malformed response", err)
	}
	switch env.Type {
	case typeStdoutWrite:
		return StdoutChunk{Data: env.Data}, nil
	case typeStderrWrite:
		return StderrChunk{Data: env.Data}, nil
	case typeCommandDone:
		return CommandDone{Tree: orEmpty(env.Tree)}, nil
	case typeCommandFailure:
		return CommandFailure{Message: env.Message}, nil
	default:
		return nil, protocolError(fmt.Sprintf("unknown response type %q", env.Type))
	}
}

func protocolError(msg string) error {
	return errors.New(errors.ErrCodeProtocol, msg)
}

func orEmpty(t tree.Tree) tree.Tree {
	if t == nil {
		return tree.Tree{}
	}
	return t
}
