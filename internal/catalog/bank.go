package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pavelanni/interviewer/internal/model"
)

// generalPerRole is how many general questions follow a role's own questions.
const generalPerRole = 2

//go:embed questions/bank.json
var bankJSON []byte

type bankFile struct {
	Roles   map[string][]model.Question `json:"roles"`
	General []model.Question            `json:"general"`
}

var (
	bankOnce sync.Once
	bank     bankFile
	bankErr  error
)

func loadBank() (*bankFile, error) {
	bankOnce.Do(func() {
		if err := json.Unmarshal(bankJSON, &bank); err != nil {
			bankErr = fmt.Errorf("parse question bank: %w", err)
		}
	})
	return &bank, bankErr
}

// QuestionsForRole returns the built-in questions for role: the role's own
// questions plus the first two general questions, or every general
// question when the bank has nothing specific for role.
func QuestionsForRole(role string) ([]model.Question, error) {
	b, err := loadBank()
	if err != nil {
		return nil, err
	}

	var specific []model.Question
	for name, qs := range b.Roles {
		if strings.EqualFold(name, strings.TrimSpace(role)) {
			specific = qs
			break
		}
	}

	var out []model.Question
	if specific != nil {
		out = append(out, cloneQuestions(specific)...)
		out = append(out, cloneQuestions(b.General[:min(generalPerRole, len(b.General))])...)
		return out, nil
	}
	return cloneQuestions(b.General), nil
}

func cloneQuestions(qs []model.Question) []model.Question {
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		q.Hints = append([]string(nil), q.Hints...)
		out[i] = q
	}
	return out
}
