package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/helpdesk/internal/client"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/store"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const defaultServer = "http://localhost:8080"

// cli carries what every command needs. It is rebuilt per invocation.
type cli struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "helpdesk",
		Short:         "Helpdesk ticketing from the command line",
		Long:          `Create, triage and follow helpdesk tickets against a helpdesk API server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.String("server", "", "API base URL (default "+defaultServer+")")
	flags.String("session", "", "session file (default <user config dir>/helpdesk/session.json)")
	flags.String("config", "", "config file (default <user config dir>/helpdesk/config.yaml)")
	flags.String("log-level", "warn", "log level for diagnostics on stderr")
	flags.Duration("timeout", 15*time.Second, "request timeout")
	_ = c.v.BindPFlags(flags)

	c.v.SetEnvPrefix("HELPDESK")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newAgentsCmd(c),
		newTicketsCmd(c),
		newCommentCmd(c),
		newAttachCmd(c),
		newTagsCmd(c),
		newStatsCmd(c),
		newWatchCmd(c),
	)
	return root
}

// init reads the optional config file and sets up diagnostics logging.
func (c *cli) init() error {
	if file := c.v.GetString("config"); file != "" {
		c.v.SetConfigFile(file)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	} else if dir, err := configDir(); err == nil {
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(dir)
		if err := c.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	level := zapcore.WarnLevel
	if err := level.Set(c.v.GetString("log-level")); err != nil {
		return apperrors.NewValidationError("unknown log level", map[string]any{"fields": []string{"log-level"}})
	}
	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.TimeKey = ""
	c.logger = zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(encoder), zapcore.AddSync(c.errOut), level))
	return nil
}

func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "helpdesk"), nil
}

func (c *cli) sessionPath() (string, error) {
	if path := c.v.GetString("session"); path != "" {
		return path, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", fmt.Errorf("locate session file: %w", err)
	}
	return filepath.Join(dir, "session.json"), nil
}

func (c *cli) server(sess *session) string {
	if server := c.v.GetString("server"); server != "" {
		return server
	}
	if sess != nil && sess.Server != "" {
		return sess.Server
	}
	return defaultServer
}

func (c *cli) newClient(server, token string) *client.Client {
	return client.New(client.Config{
		BaseURL: server,
		Token:   token,
		Timeout: c.v.GetDuration("timeout"),
		Logger:  c.logger,
	})
}

// connect restores the saved session.
func (c *cli) connect() (*client.Client, domain.Actor, error) {
	path, err := c.sessionPath()
	if err != nil {
		return nil, domain.Actor{}, err
	}
	sess, err := loadSession(path)
	if err != nil {
		return nil, domain.Actor{}, err
	}
	if sess == nil || sess.Token == "" {
		return nil, domain.Actor{}, apperrors.NewUnauthorized("not signed in; run helpdesk login")
	}
	if !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt) {
		return nil, domain.Actor{}, apperrors.NewUnauthorized("session expired; run helpdesk login")
	}
	profile := sess.Profile.Domain()
	return c.newClient(c.server(sess), sess.Token), profile.Actor(), nil
}

func (c *cli) notifier() store.Notifier {
	return store.LogNotifier{Logger: c.logger}
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
