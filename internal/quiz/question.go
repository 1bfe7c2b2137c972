package quiz

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"mcqquiz/internal/recovery"
)

// Question is one multiple-choice question as produced by the model.
type Question struct {
	ID       string            `json:"id"`
	Question string            `json:"question"`
	Options  map[string]string `json:"options"`
	Correct  string            `json:"correct"`
	Reason   string            `json:"reason"`
}

// OptionLetters returns the option keys in alphabetical order (A, B, C, D...).
func (q Question) OptionLetters() []string {
	letters := make([]string, 0, len(q.Options))
	for letter := range q.Options {
		letters = append(letters, letter)
	}
	sort.Strings(letters)
	return letters
}

// CorrectText returns the text of the correct option, or "" when the model named a letter
// that is not among the options.
func (q Question) CorrectText() string {
	return q.Options[q.Correct]
}

// Choice resolves a selection given as an option letter ("b") or as the option text to the
// option text.
func (q Question) Choice(choice string) (string, bool) {
	choice = strings.TrimSpace(choice)
	if text, ok := q.Options[strings.ToUpper(choice)]; ok {
		return text, true
	}
	for _, text := range q.Options {
		if text == choice {
			return text, true
		}
	}
	return "", false
}

// Validate checks the fields the quiz flow depends on.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question %s has no text", q.ID)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("question %s has %d options, need at least 2", q.ID, len(q.Options))
	}
	if _, ok := q.Options[q.Correct]; !ok {
		return fmt.Errorf("question %s names correct option %q which does not exist", q.ID, q.Correct)
	}
	return nil
}

// record mirrors the JSON layout the prompt asks for. The model sometimes returns the
// correct letter with extra words ("B) Mars"), so it is cleaned up in FromRecords.
type record struct {
	Question string            `json:"question"`
	Options  map[string]string `json:"options"`
	Correct  string            `json:"correct"`
	Reason   string            `json:"reason"`
}

// FromRecords converts recovered records into questions in discovery order. Records that do
// not describe a usable question are skipped.
func FromRecords(res *recovery.Result) []Question {
	if res == nil {
		return nil
	}
	questions := make([]Question, 0, res.Len())
	for _, key := range res.Keys {
		raw, _ := res.Get(key)
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.Printf("DEBUG: Skipping record %s, not a question object: %v", key, err)
			continue
		}
		q := Question{
			ID:       key,
			Question: strings.TrimSpace(rec.Question),
			Options:  rec.Options,
			Correct:  normalizeLetter(rec.Correct, rec.Options),
			Reason:   strings.TrimSpace(rec.Reason),
		}
		if err := q.Validate(); err != nil {
			log.Printf("DEBUG: Skipping record %s: %v", key, err)
			continue
		}
		questions = append(questions, q)
	}
	return questions
}

// normalizeLetter maps answers like "b", "B)", "B. Mars" or the option text itself onto
// an option key.
func normalizeLetter(correct string, options map[string]string) string {
	correct = strings.TrimSpace(correct)
	if _, ok := options[correct]; ok {
		return correct
	}
	for letter, text := range options {
		if strings.EqualFold(strings.TrimSpace(text), correct) {
			return letter
		}
	}
	if correct != "" {
		head := strings.ToUpper(correct[:1])
		if _, ok := options[head]; ok {
			rest := strings.TrimLeft(correct[1:], " ")
			if rest == "" || strings.ContainsAny(rest[:1], ").:-") {
				return head
			}
		}
	}
	return correct
}
