package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
)

// PromptOptions controls how interactive forms are run.
type PromptOptions struct {
	// Accessible runs forms as plain line-based prompts (screen readers, pipes, tests).
	Accessible bool
	Input      io.Reader
	Output     io.Writer
}

func (o *PromptOptions) apply(form *huh.Form) *huh.Form {
	if o == nil {
		return form
	}
	form = form.WithAccessible(o.Accessible)
	if o.Input != nil {
		form = form.WithInput(o.Input)
	}
	if o.Output != nil {
		form = form.WithOutput(o.Output)
	}
	return form
}

func required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

// PromptCredentials asks for whichever of email and password is still empty.
func PromptCredentials(email, password *string, opts *PromptOptions) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(email).
			Validate(required("email")))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(required("password")))
	}
	if len(fields) == 0 {
		return nil
	}

	form := huh.NewForm(huh.NewGroup(fields...))
	return opts.apply(form).Run()
}

// Confirm prompts the user for yes/no confirmation
func Confirm(message string, defaultYes bool, opts *PromptOptions) bool {
	answer := defaultYes
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(message).
			Affirmative("Yes").
			Negative("No").
			Value(&answer),
	))
	if err := opts.apply(form).Run(); err != nil {
		return defaultYes
	}
	return answer
}
