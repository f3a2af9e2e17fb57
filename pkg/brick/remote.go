package brick

import "fmt"

// Command identifies a button of the infrared remote control.
type Command int

const (
	CmdMessage1 Command = iota + 1
	CmdMessage2
	CmdMessage3
	CmdMotorUp
	CmdMotorDown
	CmdProgram1
	CmdProgram2
	CmdProgram3
	CmdProgram4
	CmdProgram5
	CmdSound
	CmdStop
)

var commandNames = map[Command]string{
	CmdMessage1:  "message1",
	CmdMessage2:  "message2",
	CmdMessage3:  "message3",
	CmdMotorUp:   "motorUp",
	CmdMotorDown: "motorDown",
	CmdProgram1:  "program1",
	CmdProgram2:  "program2",
	CmdProgram3:  "program3",
	CmdProgram4:  "program4",
	CmdProgram5:  "program5",
	CmdSound:     "sound",
	CmdStop:      "stop",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Event is a button press received from the remote control.
// Motor is only set for CmdMotorUp and CmdMotorDown.
type Event struct {
	Cmd   Command
	Motor MotorName
}

func (e Event) String() string {
	if e.Motor != "" {
		return fmt.Sprintf("%s(%s)", e.Cmd, e.Motor)
	}
	return e.Cmd.String()
}

// Remote delivers remote control events.
type Remote interface {
	Events() <-chan Event
}
