// services/validation.go - Quiz definition checks
package services

import (
	"fmt"
	"strings"

	"wizzzard/models"
	"wizzzard/utils"
)

const (
	MinTimeLimit = 5
	MaxTimeLimit = 300
	MinOptions   = 2
)

// ValidateQuiz returns the first violation in a quiz definition, checking
// fields in the order a host fills them in.
func ValidateQuiz(title string, questions []models.Question) error {
	v := utils.Validate

	if err := v.Var(strings.TrimSpace(title), "required"); err != nil {
		return utils.NewValidationError("title", "Quiz title is required")
	}
	if err := v.Var(questions, "min=1"); err != nil {
		return utils.NewValidationError("questions", "Quiz needs at least one question")
	}

	for i, q := range questions {
		n := i + 1
		field := fmt.Sprintf("questions[%d]", i)

		if err := v.Var(strings.TrimSpace(q.Text), "required"); err != nil {
			return utils.NewValidationError(field+".text", fmt.Sprintf("Question %d text is required", n))
		}
		if err := v.Var(q.TimeLimit, fmt.Sprintf("min=%d,max=%d", MinTimeLimit, MaxTimeLimit)); err != nil {
			return utils.NewValidationError(field+".timeLimit",
				fmt.Sprintf("Question %d time limit should be between %d and %d seconds", n, MinTimeLimit, MaxTimeLimit))
		}
		if err := v.Var(q.Options, fmt.Sprintf("min=%d", MinOptions)); err != nil {
			return utils.NewValidationError(field+".options", fmt.Sprintf("Question %d needs at least %d options", n, MinOptions))
		}

		correct := 0
		for j, o := range q.Options {
			if err := v.Var(strings.TrimSpace(o.Text), "required"); err != nil {
				return utils.NewValidationError(fmt.Sprintf("%s.options[%d].text", field, j),
					fmt.Sprintf("Option %d for Question %d is required", j+1, n))
			}
			if o.IsCorrect {
				correct++
			}
		}

		switch {
		case correct == 0:
			return utils.NewValidationError(field+".options", fmt.Sprintf("Question %d must have a correct option selected", n))
		case correct > 1:
			return utils.NewValidationError(field+".options", fmt.Sprintf("Question %d must have exactly one correct option", n))
		}
	}

	return nil
}

// ValidateCode checks the shape of a join code.
func ValidateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return utils.NewValidationError("code", "Please enter a quiz code")
	}
	if err := utils.Validate.Var(code, "len=6,number"); err != nil {
		return utils.NewValidationError("code", "Quiz code must be 6 digits")
	}
	return nil
}

// normalizeQuestions trims text fields before a quiz is stored.
func normalizeQuestions(questions []models.Question) []models.Question {
	out := make([]models.Question, len(questions))
	for i, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		opts := make([]models.Option, len(q.Options))
		for j, o := range q.Options {
			opts[j] = models.Option{Text: strings.TrimSpace(o.Text), IsCorrect: o.IsCorrect}
		}
		q.Options = opts
		out[i] = q
	}
	return out
}
