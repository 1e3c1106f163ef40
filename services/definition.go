// services/definition.go - Quiz definition files
package services

import (
	"encoding/json"
	"fmt"
	"os"

	"wizzzard/models"
)

// QuizDefinition is the file format used to author quizzes offline.
// Options are plain strings and Correct is the index of the right one.
type QuizDefinition struct {
	Title     string               `json:"title"`
	Questions []QuestionDefinition `json:"questions"`
}

type QuestionDefinition struct {
	Text      string   `json:"text"`
	TimeLimit int      `json:"timeLimit"`
	Options   []string `json:"options"`
	Correct   int      `json:"correct"`
}

// ToQuestions converts the definition into session questions.
func (d QuizDefinition) ToQuestions() []models.Question {
	questions := make([]models.Question, 0, len(d.Questions))
	for _, qd := range d.Questions {
		q := models.Question{Text: qd.Text, TimeLimit: qd.TimeLimit}
		for _, text := range qd.Options {
			q.Options = append(q.Options, models.Option{Text: text})
		}
		q.SetCorrect(qd.Correct)
		questions = append(questions, q)
	}
	return questions
}

// Validate applies the same rules as quiz creation.
func (d QuizDefinition) Validate() error {
	return ValidateQuiz(d.Title, d.ToQuestions())
}

// LoadDefinition reads and parses a definition file.
func LoadDefinition(path string) (QuizDefinition, error) {
	var def QuizDefinition
	data, err := os.ReadFile(path)
	if err != nil {
		return def, err
	}
	if err := json.Unmarshal(data, &def); err != nil {
		return def, fmt.Errorf("parse %s: %w", path, err)
	}
	return def, nil
}
