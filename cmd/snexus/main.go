package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dalnet/snexus/internal/config"
	"github.com/dalnet/snexus/internal/protocol"
	"github.com/dalnet/snexus/internal/remote"
	"github.com/dalnet/snexus/internal/storage"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	// Command line flags
	foreground := flag.Bool("x", false, "Run in foreground (don't daemonize)")
	configPath := flag.String("c", "./config.yaml", "Path to configuration file")
	showVersion := flag.Bool("v", false, "Show version information and exit")
	showVersionLong := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	// Show version and exit
	if *showVersion || *showVersionLong {
		fmt.Printf("snexus version %s\n", version)
		fmt.Printf("Built: %s\n", buildDate)
		fmt.Printf("Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	// Daemonize unless -x flag is set
	if !*foreground {
		daemonize()
		return
	}

	if err := writePIDFile(); err != nil {
		log.Printf("Warning: could not write PID file: %v", err)
	}

	run(*configPath)
}

// daemonize re-execs the process detached from the terminal
func daemonize() {
	if os.Getenv("SNEXUS_DAEMON") == "1" {
		if err := writePIDFile(); err != nil {
			log.Printf("Warning: could not write PID file: %v", err)
		}

		fmt.Printf("Now becoming a daemon\nMy pid is %d, this has been written to snexus.pid\n", os.Getpid())

		args := append(os.Args, "-x")
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Stdout = nil
		cmd.Stderr = nil
		cmd.Stdin = nil
		cmd.Env = os.Environ()

		if err := cmd.Start(); err != nil {
			log.Fatalf("Failed to start daemon: %v", err)
		}
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), "SNEXUS_DAEMON=1")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to fork: %v", err)
	}

	// Parent exits
	os.Exit(0)
}

func writePIDFile() error {
	pid := os.Getpid()
	return os.WriteFile("snexus.pid", []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

func run(configPath string) {
	if !filepath.IsAbs(configPath) {
		wd, _ := os.Getwd()
		configPath = filepath.Join(wd, configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Login.Password == "changeme" {
		log.Fatalf("You have not set the login details correctly! Exiting...")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	audit, err := storage.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open audit trail: %v", err)
	}
	router := remote.NewRouter(audit)

	networks := make(map[string]*protocol.Network)
	for name, block := range cfg.Servers {
		n, err := setupNetwork(name, block)
		if err != nil {
			log.Fatalf("Failed to set up network %s: %v", name, err)
		}
		networks[name] = n
	}
	registerCommands(networks, router, cfg.Global.Format)

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		for _, n := range networks {
			n.Disconnect()
		}
		os.Exit(0)
	}()

	for name, n := range networks {
		go runNetwork(n, cfg.Servers[name].Autoconnect)
	}
	select {}
}

func setupNetwork(name string, block *config.ServerConfig) (*protocol.Network, error) {
	dialect, err := protocol.LookupDialect(block.Protocol)
	if err != nil {
		return nil, fmt.Errorf("%w (available protocols: %s)",
			err, strings.Join(protocol.DialectNames(), ", "))
	}
	if err := block.CheckRequired(name, dialect.RequiredConfKeys); err != nil {
		return nil, err
	}
	enc, err := block.WireEncoding()
	if err != nil {
		return nil, err
	}

	opts := protocol.Options{
		Name:       name,
		NetName:    block.Netname,
		SID:        block.SID,
		ServerName: block.Hostname,
		Addr:       block.Addr(),
		UseTLS:     block.SSL,
		Encoding:   enc,
	}
	if block.Proxy != nil {
		opts.Proxy = &protocol.ProxyOptions{
			Type:     block.Proxy.Type,
			Address:  block.Proxy.Address,
			Username: block.Proxy.Username,
			Password: block.Proxy.Password,
		}
	}
	return protocol.NewNetwork(opts, dialect)
}

// registerCommands wires the operator command surface: private messages to
// a network's service client can run "remote <network> <command>", "global
// <text>" across every connected network, "map [prefix]" for the local
// topology, and "log [count]" for recent remote-command usage.
func registerCommands(networks map[string]*protocol.Network, router *remote.Router, globalFormat string) {
	for _, n := range networks {
		origin := n
		origin.Hooks().Register(func(ev *protocol.Event) error {
			if ev.Command != "PRIVMSG" {
				return nil
			}
			svc := origin.ServiceClient()
			target, _ := ev.Data["target"].(string)
			if svc == nil || target != svc.UID {
				return nil
			}
			text, _ := ev.Data["text"].(string)
			fields := strings.Fields(text)
			if len(fields) == 0 {
				return nil
			}

			reply := func(out string) {
				if err := origin.Notice(svc.UID, ev.Sender, out); err != nil {
					log.Printf("(%s) reply to %s failed: %v", origin.Name, ev.Sender, err)
				}
			}

			switch strings.ToLower(fields[0]) {
			case "remote":
				if len(fields) < 3 {
					reply("usage: remote <network> <command>")
					return nil
				}
				remoteNet, ok := networks[fields[1]]
				if !ok {
					reply(fmt.Sprintf("no such network %q", fields[1]))
					return nil
				}
				caller := origin.FriendlyName(ev.Sender) + "@" + origin.Name
				origin.SetReply(reply)
				if err := router.Call(origin, remoteNet, caller, strings.Join(fields[2:], " "), runRemote); err != nil {
					reply(err.Error())
				}
			case "global":
				remote.Announce(networks, origin, ev.Sender, globalFormat, strings.Join(fields[1:], " "))
			case "map":
				if len(fields) > 1 {
					matches := origin.FindServers(fields[1])
					if len(matches) == 0 {
						reply(fmt.Sprintf("no servers matching %q", fields[1]))
					}
					for _, name := range matches {
						reply(name)
					}
					return nil
				}
				for _, line := range origin.MapLines() {
					reply(line)
				}
			case "log":
				count := 10
				if len(fields) > 1 {
					if parsed, err := strconv.Atoi(fields[1]); err == nil && parsed > 0 {
						count = parsed
					}
				}
				entries := router.Recent(count)
				if len(entries) == 0 {
					reply("no remote commands recorded")
				}
				for _, entry := range entries {
					reply(entry)
				}
			}
			return nil
		})
	}
}

// runRemote executes one forwarded command against the target network,
// answering through its rerouted reply path.
func runRemote(target *protocol.Network, command string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return
	}
	switch strings.ToLower(fields[0]) {
	case "map":
		for _, line := range target.MapLines() {
			target.Reply(line)
		}
	default:
		target.Reply(fmt.Sprintf("unknown remote command %q", fields[0]))
	}
}

// runNetwork keeps one network connected, retrying per its autoconnect
// delay. A non-positive delay disables reconnection.
func runNetwork(n *protocol.Network, autoconnect float64) {
	for {
		if err := n.Connect(); err != nil {
			log.Printf("(%s) connect failed: %v", n.Name, err)
		} else if err := n.Run(); err != nil {
			log.Printf("(%s) connection lost: %v", n.Name, err)
		}

		if autoconnect <= 0 {
			log.Printf("(%s) autoconnect disabled, not reconnecting", n.Name)
			return
		}
		time.Sleep(time.Duration(autoconnect * float64(time.Second)))
	}
}
