package main

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/store"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func newCommentCmd(c *cli) *cobra.Command {
	var (
		internal bool
		files    []string
	)
	cmd := &cobra.Command{
		Use:   "comment <ticket-id> <content...>",
		Short: "Add a comment to a ticket",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, err := readUploads(files)
			if err != nil {
				return err
			}
			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			comments := store.NewComments(cl, nil, c.notifier())
			comment, err := comments.Add(cmd.Context(), actor, args[0], strings.Join(args[1:], " "), internal, uploads)
			if err != nil {
				return err
			}
			c.printf("Added comment %s to ticket %s\n", comment.ID, args[0])
			for _, a := range comment.Attachments {
				c.printf("  attachment %s %s\n", a.Filename, a.URL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&internal, "internal", false, "hide the comment from the requester (staff)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "file to attach; repeatable")
	return cmd
}

func newAttachCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <ticket-id> <path>",
		Short: "Attach a file to a ticket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, err := readUploads(args[1:])
			if err != nil {
				return err
			}
			cl, actor, err := c.connect()
			if err != nil {
				return err
			}
			a, err := cl.AttachToTicket(cmd.Context(), actor, args[0], uploads[0])
			if err != nil {
				return err
			}
			c.printf("Attached %s (%d bytes) %s\n", a.Filename, a.FileSize, a.URL)
			return nil
		},
	}
}

func readUploads(paths []string) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewValidationError("cannot read "+path, map[string]any{"fields": []string{"file"}})
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = http.DetectContentType(content)
		}
		uploads = append(uploads, domain.Upload{
			Filename:    filepath.Base(path),
			ContentType: contentType,
			Content:     content,
		})
	}
	return uploads, nil
}
