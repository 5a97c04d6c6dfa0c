// Package interactive provides the interactive command-line interface
// for taskboot.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/mcu-template/taskboot/pkg/apps"
	"github.com/mcu-template/taskboot/pkg/credentials"
	"github.com/mcu-template/taskboot/pkg/discovery"
	"github.com/mcu-template/taskboot/pkg/netjoin"
	"github.com/mcu-template/taskboot/pkg/station"
	"github.com/mcu-template/taskboot/pkg/tasks"
)

// DefaultPeerWait is how long the peers command browses by default.
const DefaultPeerWait = 3 * time.Second

// Browser finds advertised boards. *discovery.MDNSBrowser implements it.
type Browser interface {
	Browse(ctx context.Context, serviceType string) (<-chan *discovery.Peer, error)
}

// Options wires the console to the running board.
type Options struct {
	Registry    *apps.Registry
	ActiveApp   string
	Joiner      apps.Joiner
	Sim         *station.SimDriver
	Credentials credentials.Store
	Browser     Browser
	Service     string

	// MaxRetries applies to joins started from the console.
	MaxRetries int
}

// Console handles interactive mode for taskboot.
type Console struct {
	opts      Options
	rl        *readline.Instance
	out       io.Writer
	closeOnce sync.Once
}

// New creates a console reading from the terminal.
func New(opts Options) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "taskboot> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := newConsole(opts, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(opts Options, out io.Writer) *Console {
	c := &Console{out: out}
	c.Wire(opts)
	return c
}

// Wire sets the board the console operates on. It must be called before
// Run.
func (c *Console) Wire(opts Options) {
	if opts.Service == "" {
		opts.Service = discovery.ServiceTypeHTTP
	}
	c.opts = opts
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.Execute(ctx, line) {
			cancel()
			return
		}
	}
}

// Close restores the terminal. It is safe to call more than once.
func (c *Console) Close() {
	c.closeOnce.Do(func() {
		if c.rl != nil {
			_ = c.rl.Close()
		}
	})
}

// Execute runs one command line. It reports whether the console should
// exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "apps":
		c.cmdApps()
	case "status", "s":
		c.cmdStatus()
	case "join", "j":
		c.cmdJoin(ctx, args)
	case "ap":
		c.cmdAP(args)
	case "creds":
		c.cmdCreds(args)
	case "peers":
		c.cmdPeers(ctx, args)
	case "heap":
		c.cmdHeap()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
taskboot Commands:
  Apps:
    apps                          - List the app table
    heap                          - Show memory statistics

  Network:
    status                        - Show the last join attempt
    join [ssid [passphrase]]      - Join a network (stored credentials if omitted)
    creds [clear]                 - Show or clear stored credentials
    peers [seconds]               - Browse for other boards over mDNS

  Simulated radio:
    ap                            - List simulated access points
    ap add <ssid> <auth> [pass]   - Put an access point on the air
    ap rm <ssid>                  - Take an access point off the air
    ap drop [reason]              - Inject a disconnect

  General:
    help                          - Show this help
    quit                          - Exit`)
}

func (c *Console) cmdApps() {
	if c.opts.Registry == nil {
		fmt.Fprintln(c.out, "No app table")
		return
	}
	for i, app := range c.opts.Registry.List() {
		marker := " "
		if app.Name == c.opts.ActiveApp {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %d  %-14s %s\n", marker, i, app.Name, app.Description)
	}
}

func (c *Console) cmdStatus() {
	if c.opts.Joiner == nil {
		fmt.Fprintln(c.out, "No station")
		return
	}
	s := c.opts.Joiner.Snapshot()
	if s.AttemptID == "" {
		fmt.Fprintln(c.out, "No join attempt yet")
		return
	}
	fmt.Fprintf(c.out, "Attempt:  %s\n", s.AttemptID)
	fmt.Fprintf(c.out, "SSID:     %s\n", s.SSID)
	fmt.Fprintf(c.out, "Outcome:  %s\n", s.Outcome)
	fmt.Fprintf(c.out, "Retries:  %d/%d\n", s.RetryCount, s.MaxRetries)
	if s.Address.IsValid() {
		fmt.Fprintf(c.out, "Address:  %s\n", s.Address)
	}
}

func (c *Console) cmdJoin(ctx context.Context, args []string) {
	if c.opts.Joiner == nil {
		fmt.Fprintln(c.out, "No station")
		return
	}

	var cfg netjoin.JoinConfig
	switch len(args) {
	case 0:
		if c.opts.Credentials == nil {
			fmt.Fprintln(c.out, "Usage: join <ssid> [passphrase]")
			return
		}
		stored, err := c.opts.Credentials.Load()
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		if stored == nil {
			fmt.Fprintln(c.out, "No stored credentials. Usage: join <ssid> [passphrase]")
			return
		}
		cfg = stored.JoinConfig(c.opts.MaxRetries)
	default:
		pass := ""
		if len(args) > 1 {
			pass = args[1]
		}
		cfg = netjoin.DefaultJoinConfig(args[0], pass)
		cfg.MaxRetries = c.opts.MaxRetries
		if pass == "" {
			cfg.MinAuth = netjoin.AuthOpen
		}
	}

	fmt.Fprintf(c.out, "Joining %s...\n", cfg.SSID)
	outcome, err := c.opts.Joiner.BeginJoin(ctx, cfg)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	s := c.opts.Joiner.Snapshot()
	if outcome == netjoin.OutcomeConnected {
		fmt.Fprintf(c.out, "%s: %s\n", outcome, s.Address)
		return
	}
	fmt.Fprintf(c.out, "%s after %d retries\n", outcome, s.RetryCount)
}

func (c *Console) cmdAP(args []string) {
	if c.opts.Sim == nil {
		fmt.Fprintln(c.out, "No simulated radio")
		return
	}
	if len(args) == 0 {
		ssids := c.opts.Sim.AccessPoints()
		slices.Sort(ssids)
		if len(ssids) == 0 {
			fmt.Fprintln(c.out, "No access points on the air")
			return
		}
		for _, ssid := range ssids {
			fmt.Fprintf(c.out, "  %s\n", ssid)
		}
		return
	}

	switch args[0] {
	case "add":
		if len(args) < 3 {
			fmt.Fprintln(c.out, "Usage: ap add <ssid> <auth> [passphrase]")
			return
		}
		mode, err := netjoin.ParseAuthMode(args[2])
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		pass := ""
		if len(args) > 3 {
			pass = args[3]
		}
		c.opts.Sim.AddAccessPoint(station.NewAccessPoint(args[1], mode, pass, netip.Addr{}))
		fmt.Fprintf(c.out, "Access point %s (%s) on the air\n", args[1], mode)

	case "rm":
		if len(args) < 2 {
			fmt.Fprintln(c.out, "Usage: ap rm <ssid>")
			return
		}
		c.opts.Sim.RemoveAccessPoint(args[1])
		fmt.Fprintf(c.out, "Access point %s removed\n", args[1])

	case "drop":
		reason := netjoin.ReasonBeaconTimeout
		if len(args) > 1 {
			n, err := strconv.ParseUint(args[1], 10, 8)
			if err != nil {
				fmt.Fprintf(c.out, "Invalid reason code: %s\n", args[1])
				return
			}
			reason = netjoin.DisconnectReason(n)
		}
		c.opts.Sim.Inject(netjoin.Disconnected(reason))
		fmt.Fprintf(c.out, "Injected disconnect (%s)\n", reason)

	default:
		fmt.Fprintf(c.out, "Unknown ap command: %s\n", args[0])
	}
}

func (c *Console) cmdCreds(args []string) {
	if c.opts.Credentials == nil {
		fmt.Fprintln(c.out, "No credential store")
		return
	}
	if len(args) > 0 && args[0] == "clear" {
		if err := c.opts.Credentials.Clear(); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintln(c.out, "Stored credentials cleared")
		return
	}

	stored, err := c.opts.Credentials.Load()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if stored == nil {
		fmt.Fprintln(c.out, "No stored credentials")
		return
	}
	fmt.Fprintf(c.out, "SSID:      %s\n", stored.SSID)
	fmt.Fprintf(c.out, "Min auth:  %s\n", stored.MinAuth)
	fmt.Fprintf(c.out, "Saved at:  %s\n", stored.SavedAt.Format(time.RFC3339))
}

func (c *Console) cmdPeers(ctx context.Context, args []string) {
	if c.opts.Browser == nil {
		fmt.Fprintln(c.out, "mDNS disabled")
		return
	}
	wait := DefaultPeerWait
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			fmt.Fprintf(c.out, "Invalid duration: %s\n", args[0])
			return
		}
		wait = time.Duration(secs) * time.Second
	}

	browseCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	peers, err := c.opts.Browser.Browse(browseCtx, c.opts.Service)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	found := 0
	for p := range peers {
		found++
		board, app := "", ""
		if p.Info != nil {
			board, app = p.Info.Board, p.Info.App
		}
		fmt.Fprintf(c.out, "  %-24s %s:%d  board=%s app=%s\n", p.InstanceName, p.Host, p.Port, board, app)
	}
	fmt.Fprintf(c.out, "%d peer(s) found\n", found)
}

func (c *Console) cmdHeap() {
	h := tasks.HeapStats()
	fmt.Fprintf(c.out, "Free:        %d KB\n", h.FreeKB)
	fmt.Fprintf(c.out, "In use:      %d KB\n", h.InUseKB)
	fmt.Fprintf(c.out, "System:      %d KB\n", h.SysKB)
	fmt.Fprintf(c.out, "GC cycles:   %d\n", h.NumGC)
	fmt.Fprintf(c.out, "Goroutines:  %d\n", h.Goroutines)
}
