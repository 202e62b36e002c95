package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/coapkit/coap-go/pkg/client"
	"github.com/coapkit/coap-go/pkg/config"
	"github.com/coapkit/coap-go/pkg/discovery"
	"github.com/coapkit/coap-go/pkg/observe"
	"github.com/coapkit/coap-go/pkg/transport"
	"github.com/coapkit/coap-go/pkg/wire"
)

// observation tracks one active observation for the shell.
type observation struct {
	index    int
	endpoint netip.AddrPort
	path     string
	token    wire.Token
	key      string
}

// shell is the interactive command loop.
type shell struct {
	client *client.Client
	config config.Config
	logger *slog.Logger
	rl     *readline.Instance

	mu           sync.Mutex
	observations map[int]*observation
	nextIndex    int
}

// newShell creates the interactive shell.
func newShell(c *client.Client, cfg config.Config, logger *slog.Logger) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "coap> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &shell{
		client:       c,
		config:       cfg,
		logger:       logger,
		rl:           rl,
		observations: make(map[int]*observation),
		nextIndex:    1,
	}, nil
}

// Run starts the interactive command loop.
func (s *shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
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
			s.printHelp()

		case "observe", "o":
			s.cmdObserve(ctx, args)

		case "cancel":
			s.cmdCancel(args)

		case "deregister", "dereg":
			s.cmdDeregister(ctx, args)

		case "get", "g":
			s.cmdGet(ctx, args)

		case "list", "ls":
			s.cmdList()

		case "discover":
			s.cmdDiscover(ctx)

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
CoAP Client Commands:
  Observation:
    observe <host:port> <path>  - Start observing a resource
    cancel <n>                  - Cancel observation n locally
    deregister <n>              - Cancel observation n and inform the peer
    list                        - List active observations

  Requests:
    get <host:port> <path>      - Perform a single GET

  Discovery:
    discover                    - Find CoAP endpoints via mDNS

  General:
    help                        - Show this help
    quit                        - Exit`)
}

// cmdObserve handles the observe command.
func (s *shell) cmdObserve(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: observe <host:port> <path>")
		return
	}

	endpoint, err := transport.ResolveEndpoint(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid endpoint: %v\n", err)
		return
	}
	path := args[1]

	out := s.rl.Stdout()
	token, resp, err := s.client.Observe(ctx, endpoint, path, func(m *wire.Message) {
		seq, _ := m.Observe()
		fmt.Fprintf(out, "[NOTIFY] %s%s seq=%d: %s\n", endpoint, path, seq, formatPayload(m))
	})
	if err != nil {
		fmt.Fprintf(out, "Observe failed: %v\n", err)
		return
	}
	if resp.Code.IsError() {
		fmt.Fprintf(out, "Peer refused observation: %s\n", resp.Code)
		return
	}

	s.mu.Lock()
	index := s.nextIndex
	s.nextIndex++
	s.observations[index] = &observation{
		index:    index,
		endpoint: endpoint,
		path:     path,
		token:    token,
		key:      observe.NewKey(endpoint, token).String(),
	}
	s.mu.Unlock()

	fmt.Fprintf(out, "Observation %d established: %s\n", index, formatPayload(resp))
}

// cmdCancel handles the cancel command.
func (s *shell) cmdCancel(args []string) {
	obs, ok := s.takeObservation(args, "cancel")
	if !ok {
		return
	}

	if err := s.client.Cancel(obs.endpoint, obs.token); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Cancel failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Observation %d cancelled\n", obs.index)
}

// cmdDeregister handles the deregister command.
func (s *shell) cmdDeregister(ctx context.Context, args []string) {
	obs, ok := s.takeObservation(args, "deregister")
	if !ok {
		return
	}

	resp, err := s.client.Deregister(ctx, obs.endpoint, obs.path, obs.token)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Deregister failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Observation %d deregistered (%s)\n", obs.index, resp.Code)
}

// cmdGet handles the get command.
func (s *shell) cmdGet(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: get <host:port> <path>")
		return
	}

	endpoint, err := transport.ResolveEndpoint(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid endpoint: %v\n", err)
		return
	}

	resp, err := s.client.Get(ctx, endpoint, args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "GET failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "%s: %s\n", resp.Code, formatPayload(resp))
}

// cmdList handles the list command.
func (s *shell) cmdList() {
	active := make(map[string]bool)
	for _, key := range s.client.Observations() {
		active[key.String()] = true
	}

	s.mu.Lock()
	indexes := make([]int, 0, len(s.observations))
	for index := range s.observations {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	if len(indexes) == 0 {
		s.mu.Unlock()
		fmt.Fprintln(s.rl.Stdout(), "No observations")
		return
	}

	fmt.Fprintf(s.rl.Stdout(), "\nObservations (%d):\n", len(indexes))
	fmt.Fprintln(s.rl.Stdout(), "-------------------------------------------")
	for _, index := range indexes {
		obs := s.observations[index]
		status := "active"
		if !active[obs.key] {
			status = "ended"
		}
		fmt.Fprintf(s.rl.Stdout(), "  %d. %s%s (%s)\n", index, obs.endpoint, obs.path, status)
	}
	s.mu.Unlock()
}

// cmdDiscover handles the discover command.
func (s *shell) cmdDiscover(ctx context.Context) {
	fmt.Fprintln(s.rl.Stdout(), "Discovering CoAP endpoints...")

	browser := discovery.NewBrowser(discovery.BrowserConfig{Interface: s.config.Interface})
	browseCtx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()

	results, err := browser.Browse(browseCtx)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Discovery error: %v\n", err)
		return
	}

	found := 0
	for {
		select {
		case svc, ok := <-results:
			if !ok {
				if found == 0 {
					fmt.Fprintln(s.rl.Stdout(), "No CoAP endpoints found")
				}
				return
			}
			found++
			fmt.Fprintf(s.rl.Stdout(), "  %d. %s (%s:%d)\n", found, svc.InstanceName, svc.Host, svc.Port)
			if svc.ResourceType != "" {
				fmt.Fprintf(s.rl.Stdout(), "     rt: %s\n", svc.ResourceType)
			}
			for _, addr := range svc.Addresses {
				fmt.Fprintf(s.rl.Stdout(), "     addr: %s\n", addr)
			}
		case <-browseCtx.Done():
			if found == 0 {
				fmt.Fprintln(s.rl.Stdout(), "No CoAP endpoints found")
			}
			return
		}
	}
}

// takeObservation parses an index argument and removes the matching
// shell entry.
func (s *shell) takeObservation(args []string, usage string) (*observation, bool) {
	if len(args) < 1 {
		fmt.Fprintf(s.rl.Stdout(), "Usage: %s <n> (see 'list')\n", usage)
		return nil, false
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid observation number: %v\n", err)
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obs, ok := s.observations[index]
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "No observation %d (see 'list')\n", index)
		return nil, false
	}
	delete(s.observations, index)
	return obs, true
}

// formatPayload renders a response payload for display.
func formatPayload(m *wire.Message) string {
	if len(m.Payload) == 0 {
		return "(empty)"
	}
	if format, ok := m.ContentFormat(); ok && format == wire.ContentFormatCBOR {
		var value any
		if err := wire.UnmarshalPayload(m.Payload, &value); err == nil {
			return fmt.Sprintf("%v", value)
		}
	}
	if isPrintable(m.Payload) {
		return string(m.Payload)
	}
	return fmt.Sprintf("%d bytes: %x", len(m.Payload), truncate(m.Payload, 16))
}

func isPrintable(data []byte) bool {
	for _, b := range data {
		if b < 0x20 && b != '\n' && b != '\t' {
			return false
		}
		if b > 0x7e {
			return false
		}
	}
	return true
}

func truncate(data []byte, n int) []byte {
	if len(data) <= n {
		return data
	}
	return data[:n]
}
