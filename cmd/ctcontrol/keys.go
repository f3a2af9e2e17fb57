package main

import "github.com/hagbeck/containerterminal/pkg/brick"

// remoteKeys maps keyboard keys onto the buttons of the infrared remote.
var remoteKeys = map[string]brick.Event{
	"1":  {Cmd: brick.CmdMessage1},
	"2":  {Cmd: brick.CmdMessage2},
	"3":  {Cmd: brick.CmdMessage3},
	"a":  {Cmd: brick.CmdMotorUp, Motor: brick.MotorA},
	"z":  {Cmd: brick.CmdMotorDown, Motor: brick.MotorA},
	"s":  {Cmd: brick.CmdMotorUp, Motor: brick.MotorB},
	"x":  {Cmd: brick.CmdMotorDown, Motor: brick.MotorB},
	"d":  {Cmd: brick.CmdMotorUp, Motor: brick.MotorC},
	"c":  {Cmd: brick.CmdMotorDown, Motor: brick.MotorC},
	"f1": {Cmd: brick.CmdProgram1},
	"f2": {Cmd: brick.CmdProgram2},
	"f3": {Cmd: brick.CmdProgram3},
	"f4": {Cmd: brick.CmdProgram4},
	"f5": {Cmd: brick.CmdProgram5},
	"b":  {Cmd: brick.CmdSound},
	" ":  {Cmd: brick.CmdStop},
	".":  {Cmd: brick.CmdStop},
}

// keyHelp is shown below the log box.
const keyHelp = "1/2/3 msg  a/z s/x d/c motor A/B/C +/-  F1-F5 prog  b sound  space stop  r RUN  q quit"
