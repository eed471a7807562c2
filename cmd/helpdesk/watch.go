package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/store"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show ticket counts for the tickets visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			stats, err := cl.Stats(cmd.Context(), actor)
			if err != nil {
				return err
			}
			renderStats(c.out, stats)
			return nil
		},
	}
}

func newWatchCmd(c *cli) *cobra.Command {
	var (
		lf       listFlags
		ticketID string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow ticket changes live until interrupted",
		Long: `Without --ticket the filtered ticket list is printed again after every
change. With --ticket each change to that ticket is printed as it arrives.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticketID != "" {
				return c.watchTicket(cmd.Context(), ticketID)
			}
			f, srt, err := lf.build()
			if err != nil {
				return err
			}
			return c.watchCollection(cmd.Context(), f, srt)
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVar(&ticketID, "ticket", "", "follow a single ticket")
	return cmd
}

func (c *cli) watchCollection(ctx context.Context, f filter.Filter, srt filter.Sort) error {
	cl, actor, err := c.connect()
	if err != nil {
		return err
	}
	sub, err := cl.SubscribeCollection(ctx)
	if err != nil {
		return err
	}
	st := store.New(store.Config{
		Backend:  cl,
		Notifier: c.notifier(),
		Logger:   c.logger,
		OnChange: func(tickets []domain.Ticket) {
			c.printf("%s\n", faintStyle.Render("updated "+time.Now().Format(time.TimeOnly)))
			renderTicketTable(c.out, tickets)
		},
	})
	if err := st.Load(ctx, actor, f, srt); err != nil {
		sub.Close()
		return err
	}
	return quiet(st.Listen(ctx, sub))
}

func (c *cli) watchTicket(ctx context.Context, id string) error {
	cl, actor, err := c.connect()
	if err != nil {
		return err
	}
	ticket, err := cl.GetTicket(ctx, actor, id)
	if err != nil {
		return err
	}
	sub, err := cl.SubscribeTicket(ctx, id)
	if err != nil {
		return err
	}
	defer sub.Close()
	c.printf("Watching %s: %s [%s]\n", ticket.ID, ticket.Subject, ticket.Status)
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.C:
			if !ok {
				return nil
			}
			c.printf("%s\n", describeNotification(n))
			if n.Kind == realtime.KindDeleted {
				return nil
			}
		}
	}
}

func describeNotification(n realtime.Notification) string {
	switch n.Kind {
	case realtime.KindRecord:
		t := n.Ticket
		if t == nil {
			return "updated"
		}
		return fmt.Sprintf("updated: %s [%s, %s] assignee %s", t.Subject, t.Status, t.Priority, assigneeName(t))
	case realtime.KindDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("changed: %s", n.Topic)
	}
}

// quiet treats an interrupt as a normal end of watching.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
