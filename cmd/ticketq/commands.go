package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/PlanetLumi/TicketSystem/internal/access"
	"github.com/PlanetLumi/TicketSystem/internal/audit"
	"github.com/PlanetLumi/TicketSystem/internal/domain"
	"github.com/PlanetLumi/TicketSystem/internal/queue"
	apperrors "github.com/PlanetLumi/TicketSystem/pkg/util"
)

// run opens the app, resolves the caller and invokes fn.
func (c *cli) run(fn func(ctx context.Context, a *app, caller domain.Caller) error) error {
	ctx := context.Background()
	a, err := newApp(ctx, c.cfg, c.logger, c.fs, c.out)
	if err != nil {
		return err
	}
	defer a.close()

	caller, err := a.caller(c.opts.Token)
	if err != nil {
		return err
	}
	return fn(ctx, a, caller)
}

// withQueue is run with the queue replayed from the log.
func (c *cli) withQueue(command access.Command, fn func(ctx context.Context, a *app, q *queue.Queue, caller domain.Caller) error) error {
	return c.run(func(ctx context.Context, a *app, caller domain.Caller) error {
		if err := a.authorize(ctx, caller, command); err != nil {
			return err
		}
		q, err := a.openQueue()
		if err != nil {
			return err
		}
		return fn(ctx, a, q, caller)
	})
}

// cmdToken mints tokens for whoever holds the signing secret.
type cmdToken struct {
	cli *cli

	User  string `long:"user" short:"u" required:"true" description:"Username the token names"`
	Level string `long:"level" short:"l" default:"BASE" choice:"BASE" choice:"ADMIN" choice:"TOPLEVEL" description:"Security level the token grants"`
}

func (cmd *cmdToken) Execute([]string) error {
	level, err := domain.ParseSecurityLevel(cmd.Level)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cmd.cli.cfg, cmd.cli.logger, cmd.cli.fs, cmd.cli.out)
	if err != nil {
		return err
	}
	defer a.close()

	caller := domain.Caller{Username: cmd.User, Level: level}
	token, expires, err := a.tokens.Issue(caller)
	if err != nil {
		return err
	}
	a.audit.LogAuditEvent(ctx, caller, fmt.Sprintf("User %s issued %s session token", caller.Username, level), audit.CategoryLoginSuccess)

	if cmd.cli.opts.JSON {
		return writeJSON(a.out, map[string]any{"token": token, "expires_at": expires.UTC().Format(time.RFC3339)})
	}
	_, err = fmt.Fprintln(a.out, token)
	return err
}

type cmdAdd struct {
	cli *cli

	Title    string `long:"title" short:"t" required:"true" description:"Ticket title"`
	Type     string `long:"type" default:"OTHER" description:"Request type; see the types command for defaults"`
	Priority *int   `long:"priority" short:"p" description:"Override the request type's default priority (lower is more urgent)"`
	Level    string `long:"level" short:"l" description:"Override the request type's default security level"`
}

func (cmd *cmdAdd) Execute([]string) error {
	rt, err := domain.ParseRequestType(cmd.Type)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	in := domain.TicketInput{Type: rt, Title: strings.TrimSpace(cmd.Title), Priority: cmd.Priority}
	if in.Title == "" {
		return apperrors.NewValidationError("title is required", nil)
	}
	if cmd.Level != "" {
		level, err := domain.ParseSecurityLevel(cmd.Level)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), nil)
		}
		in.SecurityLevel = &level
	}

	return cmd.cli.withQueue(access.CommandAddTicket, func(ctx context.Context, a *app, q *queue.Queue, caller domain.Caller) error {
		in.Creator = caller.Name()
		t := q.NewTicket(in)
		if err := q.Add(ctx, caller, t); err != nil {
			return err
		}
		return cmd.cli.printTickets([]domain.Ticket{t})
	})
}

type cmdTypes struct{ cli *cli }

func (cmd *cmdTypes) Execute([]string) error {
	return cmd.cli.printRequestTypes(domain.RequestTypes())
}

type cmdPeek struct{ cli *cli }

func (cmd *cmdPeek) Execute([]string) error {
	return cmd.cli.withQueue(access.CommandViewMyTickets, func(_ context.Context, _ *app, q *queue.Queue, caller domain.Caller) error {
		t, ok := q.Peek()
		if !ok || !access.Visible(t, caller.Level) {
			return cmd.cli.printTickets(nil)
		}
		return cmd.cli.printTickets([]domain.Ticket{t})
	})
}

type cmdPoll struct{ cli *cli }

func (cmd *cmdPoll) Execute([]string) error {
	return cmd.cli.withQueue(access.CommandViewMyTickets, func(ctx context.Context, _ *app, q *queue.Queue, caller domain.Caller) error {
		t, ok, err := q.PollFiltered(ctx, caller)
		if err != nil {
			return err
		} else if !ok {
			return cmd.cli.printTickets(nil)
		}
		return cmd.cli.printTickets([]domain.Ticket{t})
	})
}

type cmdClaim struct{ cli *cli }

func (cmd *cmdClaim) Execute([]string) error {
	return cmd.cli.withQueue(access.CommandAssignTicket, func(ctx context.Context, _ *app, q *queue.Queue, caller domain.Caller) error {
		t, err := q.Claim(ctx, caller)
		if err != nil {
			return err
		}
		return cmd.cli.printTickets([]domain.Ticket{t})
	})
}

type cmdUpdate struct {
	cli *cli

	ID       int64 `long:"id" required:"true" description:"Ticket id"`
	Priority int   `long:"priority" short:"p" required:"true" description:"New priority"`
}

func (cmd *cmdUpdate) Execute([]string) error {
	return cmd.cli.withQueue(access.CommandUpdateTicket, func(ctx context.Context, _ *app, q *queue.Queue, caller domain.Caller) error {
		ok, err := q.UpdatePriority(ctx, caller, cmd.ID, cmd.Priority)
		if err != nil {
			return err
		} else if !ok {
			return apperrors.NewNotFound("ticket", map[string]any{"id": cmd.ID})
		}
		t, _ := q.Get(cmd.ID)
		return cmd.cli.printTickets([]domain.Ticket{t})
	})
}

type cmdDelete struct {
	cli *cli

	ID int64 `long:"id" required:"true" description:"Ticket id"`
}

func (cmd *cmdDelete) Execute([]string) error {
	return cmd.cli.withQueue(access.CommandDeleteTicket, func(ctx context.Context, _ *app, q *queue.Queue, caller domain.Caller) error {
		ok, err := q.Delete(ctx, caller, cmd.ID)
		if err != nil {
			return err
		} else if !ok {
			return apperrors.NewNotFound("ticket", map[string]any{"id": cmd.ID})
		}
		_, err = fmt.Fprintf(cmd.cli.out, "deleted ticket %d\n", cmd.ID)
		return err
	})
}

type cmdComplete struct {
	cli *cli

	ID int64 `long:"id" required:"true" description:"Ticket id"`
}

func (cmd *cmdComplete) Execute([]string) error {
	return cmd.cli.withQueue(access.CommandDeleteTicket, func(ctx context.Context, _ *app, q *queue.Queue, caller domain.Caller) error {
		t, err := q.Complete(ctx, caller, cmd.ID)
		if err != nil {
			return err
		}
		return cmd.cli.printTickets([]domain.Ticket{t})
	})
}

type cmdList struct {
	cli *cli

	Mine bool `long:"mine" description:"Only tickets created by the caller"`
}

func (cmd *cmdList) Execute([]string) error {
	return cmd.cli.withQueue(access.CommandViewMyTickets, func(_ context.Context, _ *app, q *queue.Queue, caller domain.Caller) error {
		tickets := q.ListAccessible(caller.Level)
		if cmd.Mine {
			mine := tickets[:0]
			for _, t := range tickets {
				if t.Creator == caller.Name() {
					mine = append(mine, t)
				}
			}
			tickets = mine
		}
		return cmd.cli.printTickets(tickets)
	})
}

type cmdSearch struct {
	cli *cli

	Args struct {
		Query string `positional-arg-name:"query" description:"Case-insensitive title substring"`
	} `positional-args:"yes" required:"yes"`
}

func (cmd *cmdSearch) Execute([]string) error {
	return cmd.cli.withQueue(access.CommandViewMyTickets, func(_ context.Context, _ *app, q *queue.Queue, caller domain.Caller) error {
		return cmd.cli.printTickets(q.SearchAccessible(cmd.Args.Query, caller.Level))
	})
}

type cmdSnapshotSave struct{ cli *cli }

func (cmd *cmdSnapshotSave) Execute([]string) error {
	return cmd.cli.run(func(ctx context.Context, a *app, caller domain.Caller) error {
		if a.cipher == nil {
			return apperrors.NewValidationError("set SNAPSHOT_KEY or SNAPSHOT_PASSPHRASE to enable snapshots", nil)
		}
		q, err := a.openQueue()
		if err != nil {
			return err
		}
		ok, err := q.SaveSnapshot(ctx, caller)
		if err != nil {
			return err
		} else if !ok {
			return apperrors.NewForbidden("snapshots require ADMIN")
		}
		_, err = fmt.Fprintf(cmd.cli.out, "snapshot saved to %s\n", a.cfg.Queue.SnapshotPath)
		return err
	})
}

type cmdSnapshotShow struct{ cli *cli }

func (cmd *cmdSnapshotShow) Execute([]string) error {
	return cmd.cli.run(func(ctx context.Context, a *app, caller domain.Caller) error {
		if err := a.authorize(ctx, caller, access.CommandSaveSnapshot); err != nil {
			return err
		} else if a.cipher == nil {
			return apperrors.NewValidationError("set SNAPSHOT_KEY or SNAPSHOT_PASSPHRASE to read snapshots", nil)
		}
		q, ok, err := queue.LoadSnapshot(a.fs, a.cfg.Queue.SnapshotPath, a.cipher, queue.Options{Capacity: -1, Logger: a.logger})
		if err != nil {
			return err
		} else if !ok {
			_, err = fmt.Fprintf(cmd.cli.out, "no snapshot at %s\n", a.cfg.Queue.SnapshotPath)
			return err
		}
		defer q.Close()
		return cmd.cli.printTickets(q.ListAccessible(caller.Level))
	})
}

type cmdAudit struct {
	cli *cli

	Category string `long:"category" short:"c" default:"TCREATION" description:"Audit category to print"`
	Backup   bool   `long:"backup" description:"Read the backup copy instead of the primary"`
}

func (cmd *cmdAudit) Execute([]string) error {
	return cmd.cli.run(func(ctx context.Context, a *app, caller domain.Caller) error {
		if err := a.authorize(ctx, caller, access.CommandViewAuditLog); err != nil {
			return err
		}
		sink, err := audit.NewFileSink(a.fs, a.cfg.Audit.Dir)
		if err != nil {
			return apperrors.NewStorageError("opening audit dir", err)
		}
		primary, backup := sink.Paths(audit.Category(strings.ToUpper(cmd.Category)))
		path := primary
		if cmd.Backup {
			path = backup
		}
		raw, err := afero.ReadFile(a.fs, path)
		if err != nil {
			return apperrors.NewStorageError("reading "+path, err)
		}
		_, err = cmd.cli.out.Write(raw)
		return err
	})
}

type cmdStats struct{ cli *cli }

func (cmd *cmdStats) Execute([]string) error {
	return cmd.cli.withQueue(access.CommandViewAuditLog, func(_ context.Context, a *app, q *queue.Queue, _ domain.Caller) error {
		stats := map[string]any{
			"log_path":       a.cfg.Queue.LogPath,
			"snapshot_path":  a.cfg.Queue.SnapshotPath,
			"tickets":        q.Len(),
			"max_live_id":    q.MaxID(),
			"last_issued_id": q.LastIssuedID(),
			"capacity":       a.cfg.Queue.Capacity,
			"auto_snapshot":  a.cfg.Queue.AutoSnapshot && a.cipher != nil,
		}
		if cmd.cli.opts.JSON {
			return writeJSON(cmd.cli.out, stats)
		}
		for _, k := range []string{"log_path", "snapshot_path", "tickets", "max_live_id", "last_issued_id", "capacity", "auto_snapshot"} {
			if _, err := fmt.Fprintf(cmd.cli.out, "%-15s %v\n", k, stats[k]); err != nil {
				return err
			}
		}
		return nil
	})
}
