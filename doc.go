// Package containerterminal provides IR remote control and material protection for a
// LEGO container terminal model.
//
// The control program maps remote control buttons onto motor power ladders and sensor
// activation, shows status on the brick's LCD, stops the crane and the lift wagon before
// they hit their mechanical limits, and returns the lift wagon to its home position when
// the RUN button is pressed.
//
// # Installation
//
//	go install github.com/hagbeck/containerterminal/cmd/ctcontrol@latest
//
// # Usage
//
// First, run setup to choose a hardware backend and its serial port:
//
//	ctcontrol setup
//
// Then start the control program:
//
//	ctcontrol run
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/ctcontrol: CLI with setup, run and info commands
//   - pkg/brick: Hardware abstraction, remote events, configuration and backend registry
//   - pkg/control: Remote event dispatcher, motor ladder, safety supervisor and homing
//   - pkg/sim: Simulated container terminal
//   - pkg/rcx: LEGO RCX backend over a serial infrared tower
//   - pkg/firmata: Arduino backend via gobot firmata
//   - pkg/servo: Feetech servo lift winch
package containerterminal
