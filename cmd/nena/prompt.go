package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/negosyoko/nena/internal/session"
)

var errNoInput = errors.New("no input")

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// report prints the events published by the last controller call.
func (a *app) report() {
	for {
		select {
		case ev, ok := <-a.ctrl.Events():
			if !ok {
				return
			}
			if ev.Kind == session.EventError {
				fmt.Fprintf(a.out, "✗ %s\n", session.Message(ev.Err))
				continue
			}
			if ev.Message != "" {
				fmt.Fprintf(a.out, "✓ %s\n", ev.Message)
			}
		default:
			return
		}
	}
}

// retryable reports whether the user can fix err by entering something else.
func retryable(err error) bool {
	var (
		ve *session.ValidationError
		le *session.LockoutError
	)
	if errors.As(err, &ve) {
		return true
	}
	if errors.As(err, &le) {
		return false
	}
	return isClientError(err)
}
