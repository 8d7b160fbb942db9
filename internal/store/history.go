package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/interviewer/internal/model"
)

// SaveSessionHistory stores a finished session and its answers for a user.
func (s *Store) SaveSessionHistory(userID string, h model.SessionHistory) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO session_history
		 (id, user_id, job_role, total_questions, answered_questions, completion_rate, date, duration)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, userID, h.JobRole, h.TotalQuestions, h.AnsweredQuestions, h.CompletionRate, h.Date, h.Duration,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateSession
	}
	if err != nil {
		return err
	}

	for i, a := range h.Answers {
		var eval sql.NullString
		if a.Evaluation != nil {
			raw, err := json.Marshal(a.Evaluation)
			if err != nil {
				return fmt.Errorf("marshal evaluation: %w", err)
			}
			eval = sql.NullString{String: string(raw), Valid: true}
		}
		_, err := tx.Exec(
			`INSERT INTO session_answers
			 (session_id, position, question_id, question, answer, difficulty, category, evaluation)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			h.ID, i, a.QuestionID, a.Question, a.Answer, a.Difficulty, a.Category, eval,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListSessionHistory returns a user's sessions, oldest first, with answers.
func (s *Store) ListSessionHistory(userID string) ([]model.SessionHistory, error) {
	rows, err := s.db.Query(
		`SELECT id, job_role, total_questions, answered_questions, completion_rate, date, duration
		 FROM session_history WHERE user_id = ? ORDER BY date, rowid`, userID,
	)
	if err != nil {
		return nil, err
	}
	var sessions []model.SessionHistory
	for rows.Next() {
		var h model.SessionHistory
		if err := rows.Scan(&h.ID, &h.JobRole, &h.TotalQuestions, &h.AnsweredQuestions, &h.CompletionRate, &h.Date, &h.Duration); err != nil {
			rows.Close()
			return nil, err
		}
		sessions = append(sessions, h)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sessions {
		answers, err := s.getSessionAnswers(sessions[i].ID)
		if err != nil {
			return nil, fmt.Errorf("answers for session %s: %w", sessions[i].ID, err)
		}
		sessions[i].Answers = answers
	}
	return sessions, nil
}

func (s *Store) getSessionAnswers(sessionID string) ([]model.AnswerRecord, error) {
	rows, err := s.db.Query(
		`SELECT question_id, question, answer, difficulty, category, evaluation
		 FROM session_answers WHERE session_id = ? ORDER BY position`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.AnswerRecord
	for rows.Next() {
		var a model.AnswerRecord
		var eval sql.NullString
		if err := rows.Scan(&a.QuestionID, &a.Question, &a.Answer, &a.Difficulty, &a.Category, &eval); err != nil {
			return nil, err
		}
		if eval.Valid {
			var e model.Evaluation
			if err := json.Unmarshal([]byte(eval.String), &e); err != nil {
				return nil, fmt.Errorf("parse evaluation: %w", err)
			}
			a.Evaluation = &e
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
