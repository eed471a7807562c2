package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/store"
)

func newTagsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tags",
		Aliases: []string{"tag"},
		Short:   "Manage ticket tags",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all tags",
			RunE: func(cmd *cobra.Command, args []string) error {
				cl, actor, err := c.connect()
				if err != nil {
					return err
				}
				tags, err := store.NewTags(cl, nil, c.notifier()).List(cmd.Context(), actor)
				if err != nil {
					return err
				}
				if len(tags) == 0 {
					c.printf("%s\n", faintStyle.Render("No tags"))
				}
				for _, tag := range tags {
					swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(tag.Color)).Render("●")
					c.printf("%s %s %s\n", cell(tag.ID, columnWidthID), swatch, tag.Name)
				}
				return nil
			},
		},
		newTagsCreateCmd(c),
		&cobra.Command{
			Use:   "add <ticket-id> <tag-id>",
			Short: "Put a tag on a ticket",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cl, actor, err := c.connect()
				if err != nil {
					return err
				}
				if err := store.NewTags(cl, nil, c.notifier()).Add(cmd.Context(), actor, args[0], args[1]); err != nil {
					return err
				}
				c.printf("Tagged ticket %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <ticket-id> <tag-id>",
			Short: "Take a tag off a ticket",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cl, actor, err := c.connect()
				if err != nil {
					return err
				}
				if err := store.NewTags(cl, nil, c.notifier()).Remove(cmd.Context(), actor, args[0], args[1]); err != nil {
					return err
				}
				c.printf("Untagged ticket %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newTagsCreateCmd(c *cli) *cobra.Command {
	var color, ticketID string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag, optionally putting it on a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			tags := store.NewTags(cl, nil, c.notifier())
			if ticketID == "" {
				tag, err := tags.Create(cmd.Context(), actor, args[0], color)
				if err != nil {
					return err
				}
				c.printf("Created tag %s %s\n", tag.ID, tag.Name)
				return nil
			}
			tag, err := tags.CreateAndAttach(cmd.Context(), actor, ticketID, args[0], color)
			if tag != nil {
				c.printf("Created tag %s %s\n", tag.ID, tag.Name)
			}
			if err != nil {
				return err
			}
			c.printf("Tagged ticket %s\n", ticketID)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "hex color, e.g. #3b82f6")
	cmd.Flags().StringVar(&ticketID, "ticket", "", "also put the new tag on this ticket")
	return cmd
}
