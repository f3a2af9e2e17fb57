package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/hagbeck/containerterminal/pkg/brick"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var backendDescriptions = map[string]string{
	"sim":     "Simulated terminal (no hardware)",
	"rcx":     "LEGO RCX through a serial infrared tower",
	"firmata": "Arduino running StandardFirmata",
}

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Container Terminal Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := &brick.Config{}
	if existing, err := brick.LoadConfigFrom(opts.Config); err == nil {
		fmt.Printf("Updating %s\n\n", opts.Config)
		cfg = existing
	}

	// Step 1: backend
	backend := chooseBackend(cfg.Backend)
	if backend != cfg.Backend {
		cfg.Attributes = nil
	}
	cfg.Backend = backend

	switch backend {
	case "sim":
		cfg.Attributes = map[string]any{"hz": 20}
	case "rcx":
		port := choosePort("Which port is the infrared tower on?")
		cfg.Attributes = map[string]any{"port": port}
		fmt.Println("Pinging the RCX. Make sure it is switched on and faces the tower.")
		if mv, err := probeRCX(port); err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("  No answer: %v", err)))
		} else {
			fmt.Println(successStyle.Render(fmt.Sprintf("  RCX found, battery %.1f V", float64(mv)/1000)))
		}
	case "firmata":
		port := choosePort("Which port is the Arduino on?")
		cfg.Attributes = defaultFirmataAttributes(port)
		fmt.Println(dimStyle.Render("Default pins written. Edit the attributes in the config to match your wiring."))
	}

	// Step 2: optional lift winch
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Lift ━━━"))
	fmt.Println()
	useLift := cfg.HasLift()
	confirm := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Drive the lift with a Feetech servo winch?").
			Description("Replaces motor B and the rotation sensor on S1").
			Value(&useLift),
	))
	if err := confirm.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	cfg.Lift = nil
	if useLift {
		cfg.Lift = setupLift()
	}

	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the terminal with: " + headerStyle.Render("ctcontrol run"))

	return nil
}

func chooseBackend(current string) string {
	backend := current
	var options []huh.Option[string]
	for _, name := range brick.Backends() {
		label := name
		if d, ok := backendDescriptions[name]; ok {
			label = fmt.Sprintf("%s - %s", name, d)
		}
		options = append(options, huh.NewOption(label, name))
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Which hardware runs the terminal?").
			Options(options...).
			Value(&backend),
	))
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return backend
}

// serialPorts lists the serial ports, skipping Bluetooth ports on macOS.
func serialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, port := range ports {
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		out = append(out, port)
	}
	return out, nil
}

func choosePort(title string) string {
	ports, err := serialPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("Make sure the device is connected.")
		os.Exit(1)
	}

	var port string
	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		options = append(options, huh.NewOption(p, p))
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(options...).
			Value(&port),
	))
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return port
}

func defaultFirmataAttributes(port string) map[string]any {
	return map[string]any{
		"port": port,
		"motors": map[string]any{
			string(brick.MotorA): map[string]any{"enable": "3", "in1": "2", "in2": "4"},
			string(brick.MotorB): map[string]any{"enable": "5", "in1": "7", "in2": "8"},
			string(brick.MotorC): map[string]any{"enable": "6", "in1": "12", "in2": "13"},
		},
		"touch": map[string]any{
			string(brick.S2): "9",
			string(brick.S3): "10",
		},
		"rotation": "0",
		"run":      "11",
	}
}

func setupLift() map[string]any {
	port := choosePort("Which port is the servo bus on?")

	bus, servos, err := connectToBus(port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning servo bus: %v\n", err)
		os.Exit(1)
	}
	defer bus.Close()
	if len(servos) == 0 {
		fmt.Println("No servos found. Check power and wiring.")
		os.Exit(1)
	}

	for {
		id := chooseServo(servos)
		for _, s := range servos {
			if s.ID == id {
				wiggle(bus, s)
			}
		}
		var ok bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Did the winch on servo %d move?", id)).
				Value(&ok),
		))
		if err := form.Run(); err != nil {
			fmt.Println()
			os.Exit(0)
		}
		if ok {
			return map[string]any{"port": port, "id": id}
		}
	}
}

func chooseServo(servos []feetech.FoundServo) int {
	var id int
	options := make([]huh.Option[int], 0, len(servos))
	for _, s := range servos {
		options = append(options, huh.NewOption(fmt.Sprintf("ID %d (model %v)", s.ID, s.Model), s.ID))
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title("Which servo drives the lift?").
			Description("The chosen servo will wiggle").
			Options(options...).
			Value(&id),
	))
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return id
}

// wiggle makes a servo move a little so the user can recognise it.
func wiggle(bus *feetech.Bus, s feetech.FoundServo) {
	ctx := context.Background()
	servo := feetech.NewServo(bus, s.ID, s.Model)

	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return
	}
	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return
	}

	wiggleAmount := 30
	moveTimeMs := 500
	servo.SetPositionWithTime(ctx, originalPos+wiggleAmount, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	servo.SetPositionWithTime(ctx, originalPos-wiggleAmount, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	servo.SetPositionWithTime(ctx, originalPos, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)

	servo.Disable(ctx)
}

func connectToBus(port string) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	servos, err := bus.Scan(ctx, 1, 20)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return bus, servos, nil
}
