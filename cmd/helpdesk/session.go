package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/client"
)

// session is what login leaves behind for later commands.
type session struct {
	Server    string              `json:"server"`
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	Profile   dto.ProfileResponse `json:"profile"`
}

func loadSession(path string) (*session, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}
	return &sess, nil
}

func saveSession(path string, sess session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func (c *cli) remember(server string, s *client.Session) error {
	path, err := c.sessionPath()
	if err != nil {
		return err
	}
	profile := s.Profile
	if err := saveSession(path, session{
		Server:    server,
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		Profile:   dto.NewProfileResponse(&profile),
	}); err != nil {
		return err
	}
	c.printf("Signed in as %s (%s)\n", s.Profile.Name, s.Profile.Role)
	return nil
}

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			server := c.server(nil)
			s, err := c.newClient(server, "").Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return c.remember(server, s)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a customer account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			server := c.server(nil)
			s, err := c.newClient(server, "").Register(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			return c.remember(server, s)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 8 characters")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.sessionPath()
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			c.printf("Signed out\n")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, _, err := c.connect()
			if err != nil {
				return err
			}
			me, err := cl.Me(cmd.Context())
			if err != nil {
				return err
			}
			c.printf("%s <%s> %s\n", me.Name, me.Email, me.Role)
			return nil
		},
	}
}

func newAgentsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List staff members tickets can be assigned to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, _, err := c.connect()
			if err != nil {
				return err
			}
			agents, err := cl.Agents(cmd.Context())
			if err != nil {
				return err
			}
			for _, a := range agents {
				c.printf("%s  %s <%s> %s\n", a.ID, a.Name, a.Email, a.Role)
			}
			return nil
		},
	}
}
