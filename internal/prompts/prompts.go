// Package prompts wraps the interactive survey questions asked during
// bootstrap. All prompts honor AssumeYes so CI runs can accept every default
// without a terminal.
package prompts

import (
	"github.com/AlecAivazis/survey/v2"
)

// AssumeYes makes every Confirm return its default answer and every Select
// return the first option without prompting. Set by the --yes CLI flag.
var AssumeYes bool

// Confirm asks a yes/no question and returns the answer. Prompt errors
// (e.g. no TTY) fall back to the default answer, matching the behavior of an
// operator pressing enter.
func Confirm(message string, def bool) bool {
	if AssumeYes {
		return def
	}
	answer := def
	_ = survey.AskOne(&survey.Confirm{Message: message, Default: def}, &answer)
	return answer
}

// Input asks for a free-form string with an optional default.
func Input(message, def string) string {
	if AssumeYes {
		return def
	}
	answer := def
	_ = survey.AskOne(&survey.Input{Message: message, Default: def}, &answer)
	return answer
}

// Select asks the operator to pick one of the given options.
func Select(message string, options []string) (string, error) {
	if AssumeYes && len(options) > 0 {
		return options[0], nil
	}
	var answer string
	if err := survey.AskOne(&survey.Select{Message: message, Options: options}, &answer); err != nil {
		return "", err
	}
	return answer, nil
}
