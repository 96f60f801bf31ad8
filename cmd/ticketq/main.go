package main

import (
	"io"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/PlanetLumi/TicketSystem/internal/config"
	"github.com/PlanetLumi/TicketSystem/internal/observability"
)

type globalOptions struct {
	Token string `long:"token" env:"TICKETQ_TOKEN" description:"Session token naming the caller (see the token command)"`
	JSON  bool   `long:"json" description:"Print JSON instead of a table"`
}

// cli carries what every command needs.
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
	fs     afero.Fs
	out    io.Writer
	opts   *globalOptions
}

const tokenHelp = `Issue a signed session token naming a user and security level.

Tokens are signed with AUTH_TOKEN_SECRET and nothing else is checked: anyone
who can run this command with that secret can mint a TOPLEVEL token for any
username. Access to the secret is the trust boundary; the per-command
security levels only hold against callers who cannot read it.`

func newParser(c *cli) (*flags.Parser, error) {
	parser := flags.NewParser(c.opts, flags.Default)
	parser.LongDescription = `ticketq manages a durable priority queue of support tickets.

Every mutation is appended to the ticket log (QUEUE_LOG_PATH) before it is
applied, and the queue is rebuilt from that log on each invocation. Callers
identify themselves with a session token from the token command.`

	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"token", "Issue a session token", tokenHelp, &cmdToken{cli: c}},
		{"types", "List request types", "List request types with their default priority and security level", &cmdTypes{cli: c}},
		{"add", "Add a ticket", "Create a ticket with request type defaults and queue it", &cmdAdd{cli: c}},
		{"peek", "Show the most urgent ticket", "Show the root of the queue without removing it", &cmdPeek{cli: c}},
		{"poll", "Take the next visible ticket", "Remove and show the first ticket visible to the caller", &cmdPoll{cli: c}},
		{"claim", "Claim the most urgent ticket", "Assign the root ticket to the caller (TOPLEVEL)", &cmdClaim{cli: c}},
		{"update", "Change a ticket's priority", "Change a ticket's priority (TOPLEVEL)", &cmdUpdate{cli: c}},
		{"delete", "Delete a ticket", "Remove a ticket from the queue (TOPLEVEL)", &cmdDelete{cli: c}},
		{"complete", "Close a ticket", "Remove a ticket and report it closed (TOPLEVEL)", &cmdComplete{cli: c}},
		{"list", "List visible tickets", "List tickets visible to the caller in queue order", &cmdList{cli: c}},
		{"search", "Search visible tickets by title", "Case-insensitive title search over tickets visible to the caller", &cmdSearch{cli: c}},
		{"audit", "Print an audit log", "Print an audit log category (ADMIN)", &cmdAudit{cli: c}},
		{"stats", "Show queue statistics", "Show queue size, id counters and paths (ADMIN)", &cmdStats{cli: c}},
	}
	for _, cmd := range commands {
		if _, err := parser.AddCommand(cmd.name, cmd.short, cmd.long, cmd.data); err != nil {
			return nil, err
		}
	}

	snap, err := parser.AddCommand("snapshot", "Encrypted snapshots", "Save or inspect the encrypted queue snapshot (ADMIN)", &struct{}{})
	if err != nil {
		return nil, err
	}
	if _, err = snap.AddCommand("save", "Save a snapshot", "Write the full queue to QUEUE_SNAPSHOT_PATH", &cmdSnapshotSave{cli: c}); err != nil {
		return nil, err
	}
	if _, err = snap.AddCommand("show", "Show a snapshot", "Decrypt and list the tickets in QUEUE_SNAPSHOT_PATH", &cmdSnapshotShow{cli: c}); err != nil {
		return nil, err
	}
	return parser, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	c := &cli{cfg: cfg, logger: logger, fs: afero.NewOsFs(), out: os.Stdout, opts: &globalOptions{}}
	parser, err := newParser(c)
	if err != nil {
		logger.Fatal("failed to build commands", zap.Error(err))
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
