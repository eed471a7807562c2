package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describeError(err))
		os.Exit(exitCode(err))
	}
}

func describeError(err error) string {
	if domainErr := apperrors.ToDomainError(err); domainErr != nil && domainErr.Code != apperrors.CodeInternal {
		msg := domainErr.Code + ": " + domainErr.Message
		if fields, ok := domainErr.Details["fields"]; ok {
			msg += fmt.Sprintf(" (fields: %v)", fields)
		}
		return msg
	}
	return err.Error()
}

func exitCode(err error) int {
	switch {
	case apperrors.HasCode(err, apperrors.CodeValidation):
		return 2
	case apperrors.HasCode(err, apperrors.CodeUnauthorized), apperrors.HasCode(err, apperrors.CodeForbidden):
		return 3
	case apperrors.HasCode(err, apperrors.CodeNotFound):
		return 4
	default:
		return 1
	}
}
