package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/filter"
	"github.com/spec-kit/helpdesk/internal/store"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// listFlags are the list controls shared by tickets list and watch.
type listFlags struct {
	search     string
	statuses   string
	priorities string
	assignees  string
	tags       []string
	from, to   string
	sort       string
	order      string
}

func (f *listFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.search, "search", "", "match subject or description")
	flags.StringVar(&f.statuses, "status", "", "comma separated statuses (any of)")
	flags.StringVar(&f.priorities, "priority", "", "comma separated priorities (any of)")
	flags.StringVar(&f.assignees, "assignee", "", "comma separated agent ids (any of)")
	flags.StringSliceVar(&f.tags, "tag", nil, "tag id; repeat to require several (all of)")
	flags.StringVar(&f.from, "from", "", "created on or after (YYYY-MM-DD or RFC 3339)")
	flags.StringVar(&f.to, "to", "", "created on or before (YYYY-MM-DD or RFC 3339)")
	flags.StringVar(&f.sort, "sort", "", "created_at, updated_at, priority or status")
	flags.StringVar(&f.order, "order", "", "asc or desc")
}

func (f *listFlags) build() (filter.Filter, filter.Sort, error) {
	fail := func(field string, err error) (filter.Filter, filter.Sort, error) {
		return filter.Filter{}, filter.Sort{}, apperrors.NewValidationError(err.Error(), map[string]any{"fields": []string{field}})
	}
	var (
		out filter.Filter
		err error
	)
	if f.search != "" {
		search := f.search
		out.Search = &search
	}
	if out.Statuses, err = filter.ParseStatuses(f.statuses); err != nil {
		return fail("status", err)
	}
	if out.Priorities, err = filter.ParsePriorities(f.priorities); err != nil {
		return fail("priority", err)
	}
	out.Assignees = filter.SplitList(f.assignees)
	out.Tags = f.tags
	if out.CreatedFrom, err = parseTime(f.from, false); err != nil {
		return fail("from", err)
	}
	if out.CreatedTo, err = parseTime(f.to, true); err != nil {
		return fail("to", err)
	}
	if err := out.Validate(); err != nil {
		return fail("from", err)
	}
	srt, err := filter.ParseSort(f.sort, f.order)
	if err != nil {
		return fail("sort", err)
	}
	return out, srt, nil
}

// parseTime accepts RFC 3339 or a plain date. A plain upper bound covers the
// whole day.
func parseTime(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func newTicketsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tickets",
		Aliases: []string{"ticket", "t"},
		Short:   "List, create and triage tickets",
	}
	cmd.AddCommand(
		newTicketsListCmd(c),
		newTicketsShowCmd(c),
		newTicketsCreateCmd(c),
		newTicketsUpdateCmd(c),
		newTicketsDeleteCmd(c),
		newTicketsRateCmd(c),
	)
	return cmd
}

func newTicketsListCmd(c *cli) *cobra.Command {
	var (
		lf            listFlags
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tickets visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, srt, err := lf.build()
			if err != nil {
				return err
			}
			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			st := store.New(store.Config{Backend: cl, Notifier: c.notifier(), Logger: c.logger})
			if err := st.Load(cmd.Context(), actor, f, srt); err != nil {
				return err
			}
			renderTicketTable(c.out, window(st.Snapshot(), limit, offset))
			return nil
		},
	}
	lf.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many tickets")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many tickets")
	return cmd
}

func window(tickets []domain.Ticket, limit, offset int) []domain.Ticket {
	if offset > len(tickets) {
		return nil
	}
	tickets = tickets[offset:]
	if limit > 0 && limit < len(tickets) {
		tickets = tickets[:limit]
	}
	return tickets
}

func newTicketsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a ticket with comments and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			ticket, err := cl.GetTicket(cmd.Context(), actor, args[0])
			if err != nil {
				return err
			}
			renderTicket(c.out, ticket)
			return nil
		},
	}
}

func newTicketsCreateCmd(c *cli) *cobra.Command {
	var (
		draft    domain.TicketDraft
		priority string
		due      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if priority != "" {
				p, err := domain.ParseTicketPriority(priority)
				if err != nil {
					return apperrors.NewValidationError(err.Error(), map[string]any{"fields": []string{"priority"}})
				}
				draft.Priority = p
			}
			dueDate, err := parseTime(due, true)
			if err != nil {
				return apperrors.NewValidationError(err.Error(), map[string]any{"fields": []string{"due"}})
			}
			draft.DueDate = dueDate

			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			st := store.New(store.Config{Backend: cl, Notifier: c.notifier(), Logger: c.logger})
			ticket, err := st.Create(cmd.Context(), actor, draft)
			if err != nil {
				return err
			}
			c.printf("Created ticket %s\n", ticket.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&draft.Subject, "subject", "", "short summary")
	flags.StringVar(&draft.Description, "description", "", "what happened")
	flags.StringVar(&draft.Category, "category", "", "category, e.g. Account Problem")
	flags.StringVar(&priority, "priority", "", "low, medium, high or critical (default medium)")
	flags.StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	return cmd
}

func newTicketsUpdateCmd(c *cli) *cobra.Command {
	var (
		subject, description, status, priority, category, due, assign string
		clearDue, unassign                                            bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			var patch domain.TicketPatch
			if changed("subject") {
				patch.Subject = &subject
			}
			if changed("description") {
				patch.Description = &description
			}
			if changed("status") {
				s, err := domain.ParseTicketStatus(status)
				if err != nil {
					return apperrors.NewValidationError(err.Error(), map[string]any{"fields": []string{"status"}})
				}
				patch.Status = &s
			}
			if changed("priority") {
				p, err := domain.ParseTicketPriority(priority)
				if err != nil {
					return apperrors.NewValidationError(err.Error(), map[string]any{"fields": []string{"priority"}})
				}
				patch.Priority = &p
			}
			if changed("category") {
				patch.Category = &category
			}
			if changed("due") {
				d, err := parseTime(due, true)
				if err != nil {
					return apperrors.NewValidationError(err.Error(), map[string]any{"fields": []string{"due"}})
				}
				patch.DueDate = d
			}
			patch.ClearDueDate = clearDue
			if changed("assign") {
				patch.AssignedAgentID = &assign
			}
			patch.ClearAssignee = unassign

			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			st := store.New(store.Config{Backend: cl, Notifier: c.notifier(), Logger: c.logger})
			ticket, err := st.Update(cmd.Context(), actor, args[0], patch)
			if err != nil {
				return err
			}
			c.printf("Updated ticket %s: %s %s\n", ticket.ID, ticket.Status, ticket.Priority)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&subject, "subject", "", "new subject")
	flags.StringVar(&description, "description", "", "new description")
	flags.StringVar(&status, "status", "", "new status (staff)")
	flags.StringVar(&priority, "priority", "", "new priority (staff)")
	flags.StringVar(&category, "category", "", "new category (staff)")
	flags.StringVar(&due, "due", "", "new due date (staff)")
	flags.BoolVar(&clearDue, "clear-due", false, "remove the due date (staff)")
	flags.StringVar(&assign, "assign", "", "agent id to assign (staff)")
	flags.BoolVar(&unassign, "unassign", false, "remove the assignee (staff)")
	return cmd
}

func newTicketsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a ticket and its files (staff)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			st := store.New(store.Config{Backend: cl, Notifier: c.notifier(), Logger: c.logger})
			if err := st.Delete(cmd.Context(), actor, args[0]); err != nil {
				return err
			}
			c.printf("Deleted ticket %s\n", args[0])
			return nil
		},
	}
}

func newTicketsRateCmd(c *cli) *cobra.Command {
	var (
		score    int
		feedback string
	)
	cmd := &cobra.Command{
		Use:   "rate <id>",
		Short: "Rate a resolved ticket you opened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			var fb *string
			if feedback != "" {
				fb = &feedback
			}
			rating, err := cl.RateTicket(cmd.Context(), actor, args[0], score, fb)
			if err != nil {
				return err
			}
			c.printf("Rated ticket %s %d/5\n", args[0], rating.Rating)
			return nil
		},
	}
	cmd.Flags().IntVar(&score, "score", 0, "1 to 5")
	cmd.Flags().StringVar(&feedback, "feedback", "", "optional comment")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}
