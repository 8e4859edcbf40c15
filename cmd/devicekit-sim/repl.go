package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/latticeiot/devicekit-go/pkg/client"
	"github.com/latticeiot/devicekit-go/pkg/wire"
)

// sendTimeout bounds a single publish issued from the prompt.
const sendTimeout = 10 * time.Second

// REPL is the interactive prompt of the simulator.
type REPL struct {
	client *client.Client
	rl     *readline.Instance
}

func newREPL(c *client.Client) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "device> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &REPL{client: c, rl: rl}, nil
}

// Run starts the interactive command loop. It returns when the user quits
// or the context is canceled.
func (r *REPL) Run(ctx context.Context, cancel context.CancelFunc) {
	defer r.rl.Close()

	r.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			r.printHelp()

		case "telemetry", "t":
			r.cmdTelemetry(args)

		case "event", "e":
			r.cmdEvent(args)

		case "prop", "p":
			r.cmdProp(args)

		case "status", "s":
			r.cmdStatus()

		case "model", "m":
			r.cmdModel()

		case "quit", "q", "exit":
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(r.rl.Stdout(), "Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func (r *REPL) printHelp() {
	out := r.rl.Stdout()
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  telemetry <iface> <name> <value>   Send a telemetry value (alias: t)")
	fmt.Fprintln(out, "  event <iface> <name> <value>       Send a one-shot event (alias: e)")
	fmt.Fprintln(out, "  prop <iface> <name> <value>        Report a property value (alias: p)")
	fmt.Fprintln(out, "  status                             Show connection state (alias: s)")
	fmt.Fprintln(out, "  model                              Show the capability model (alias: m)")
	fmt.Fprintln(out, "  help                               Show this help (alias: ?)")
	fmt.Fprintln(out, "  quit                               Disconnect and exit (alias: q)")
}

func (r *REPL) cmdTelemetry(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: telemetry <iface> <name> <value>")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	err := r.client.SendTelemetry(ctx, args[0], map[string]any{args[1]: parseValue(args[2])})
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "Sent %s.%s = %s\n", args[0], args[1], args[2])
}

func (r *REPL) cmdEvent(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: event <iface> <name> <value>")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := r.client.SendEvent(ctx, args[0], args[1], parseValue(args[2])); err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "Event %s.%s = %s\n", args[0], args[1], args[2])
}

func (r *REPL) cmdProp(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: prop <iface> <name> <value>")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	version, err := r.client.UpdateReportedProperties(ctx, args[0], map[string]any{args[1]: parseValue(args[2])})
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Report failed: %v\n", err)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "Reported %s.%s = %s (version %d)\n", args[0], args[1], args[2], version)
}

func (r *REPL) cmdStatus() {
	out := r.rl.Stdout()
	fmt.Fprintf(out, "Device:  %s\n", r.client.DeviceID())
	fmt.Fprintf(out, "State:   %s\n", r.client.State())
}

func (r *REPL) cmdModel() {
	out := r.rl.Stdout()
	model := r.client.Model()
	if model == nil {
		fmt.Fprintln(out, "No capability model loaded")
		return
	}

	fmt.Fprintf(out, "Model: %s (version %d)\n", model.Name, model.Version)
	for _, iface := range model.Interfaces {
		fmt.Fprintf(out, "  %s\n", iface.Name)
		for _, p := range iface.Properties {
			access := "read-only"
			if p.Writable {
				access = "writable"
			}
			fmt.Fprintf(out, "    property  %-24s %s, %s\n", p.Name, p.Schema.Kind, access)
		}
		for _, c := range iface.Commands {
			fmt.Fprintf(out, "    command   %s\n", c.Name)
		}
		for _, t := range iface.Telemetries {
			fmt.Fprintf(out, "    telemetry %-24s %s\n", t.Name, t.Schema.Kind)
		}
	}
}

// printEvent displays client lifecycle events without disturbing the prompt.
func (r *REPL) printEvent(event client.Event) {
	if event.Err != nil {
		fmt.Fprintf(r.rl.Stdout(), "[EVENT] %s: %v\n", event.Type, event.Err)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "[EVENT] %s\n", event.Type)
}

// printDesired displays desired property changes pushed by the platform.
func (r *REPL) printDesired(change *wire.DesiredChange) {
	iface := change.Interface
	if iface == "" {
		iface = "*"
	}
	for name, value := range change.Values {
		fmt.Fprintf(r.rl.Stdout(), "[DESIRED] %s.%s = %v (version %d)\n", iface, name, value, change.Version)
	}
}

// echoCommand answers a command by echoing its payload.
func (r *REPL) echoCommand(_ context.Context, req *wire.CommandRequest) (any, wire.Status) {
	fmt.Fprintf(r.rl.Stdout(), "[COMMAND] %s.%s (request %s)\n", req.Interface, req.Name, req.RequestID)
	return req.Payload, wire.StatusOK
}

// parseValue interprets a prompt argument as bool, int, float or string.
func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
