package export

import (
	"fmt"
	"strings"

	"clickerexam/internal/domain"
	"clickerexam/internal/report"

	"github.com/shopspring/decimal"
)

type Layout string

const (
	LayoutDefault    Layout = "default"
	LayoutIndividual Layout = "individual"
	LayoutByQuestion Layout = "by_question"
)

func ParseLayout(v string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "default":
		return LayoutDefault, nil
	case "individual":
		return LayoutIndividual, nil
	case "by_question", "by-question", "questions":
		return LayoutByQuestion, nil
	}
	return "", fmt.Errorf("%w: unknown layout %q", domain.ErrInvalidInput, v)
}

// Render writes rep into sink using the chosen layout.
func Render(sink Sink, rep *report.Report, layout Layout) error {
	switch layout {
	case LayoutDefault:
		return renderDefault(sink, rep)
	case LayoutIndividual:
		return renderIndividual(sink, rep)
	case LayoutByQuestion:
		return renderByQuestion(sink, rep)
	}
	return fmt.Errorf("%w: unknown layout %q", domain.ErrInvalidInput, layout)
}

// sheet tracks the next free row of the current sheet.
type sheet struct {
	sink Sink
	next int
	err  error
}

func openSheet(sink Sink, name string) (*sheet, error) {
	if _, err := sink.NewSheet(name); err != nil {
		return nil, err
	}
	return &sheet{sink: sink, next: 1}, nil
}

func (s *sheet) row(style Style, values ...any) {
	if s.err != nil {
		return
	}
	for i, v := range values {
		if err := s.sink.WriteCell(s.next, i+1, v, style); err != nil {
			s.err = err
			return
		}
	}
	s.next++
}

func (s *sheet) blank() { s.next++ }

var participantHeader = []any{
	"Rank", "Participant ID", "Name", "Clicker ID", "Score", "Total Questions",
	"Correct", "Wrong", "Unattempted", "Time Taken (s)", "Percentage",
}

var questionHeader = []any{
	"Order", "Question ID", "Question", "Total Attempts", "Correct Attempts", "Accuracy (%)", "Average Time (s)",
}

var detailHeader = []any{"Q#", "Question", "Selected Option", "Correct Option", "Response Time", "Score"}

func renderDefault(sink Sink, rep *report.Report) error {
	results, err := openSheet(sink, "Participant Results")
	if err != nil {
		return err
	}
	results.row(StyleHeader, participantHeader...)
	for _, p := range rep.ParticipantResults {
		results.row(StylePlain, p.Rank, p.ParticipantID, p.ParticipantName, p.ClickerID, p.Score,
			p.TotalQuestions, p.CorrectAnswers, p.WrongAnswers, p.Unattempted, p.TimeTaken, p.Percentage)
	}
	if results.err != nil {
		return results.err
	}

	analysis, err := openSheet(sink, "Question Analysis")
	if err != nil {
		return err
	}
	analysis.row(StyleHeader, questionHeader...)
	for _, q := range rep.QuestionAnalysis {
		analysis.row(StylePlain, q.Order, q.QuestionID, q.QuestionText, q.TotalAttempts,
			q.CorrectAttempts, q.Accuracy, q.AverageTime)
	}
	if analysis.err != nil {
		return analysis.err
	}

	detail, err := openSheet(sink, "Detail")
	if err != nil {
		return err
	}
	for i, p := range rep.ParticipantResults {
		if i > 0 {
			detail.blank()
		}
		detail.row(StyleTitle, fmt.Sprintf("%s (%s)", p.ParticipantName, p.ClickerID))
		writeAnswerBlock(detail, rep.Questions, p)
	}
	return detail.err
}

func renderIndividual(sink Sink, rep *report.Report) error {
	if len(rep.ParticipantResults) == 0 {
		s, err := openSheet(sink, "Summary")
		if err != nil {
			return err
		}
		s.row(StyleTitle, rep.ExamTitle)
		s.row(StylePlain, "No participants have attempted this exam.")
		return s.err
	}
	total := len(rep.ParticipantResults)
	for _, p := range rep.ParticipantResults {
		name := p.ClickerID
		if strings.TrimSpace(name) == "" {
			name = p.ParticipantName
		}
		s, err := openSheet(sink, name)
		if err != nil {
			return err
		}
		s.row(StyleTitle, p.ParticipantName)
		s.row(StylePlain, "Clicker ID", p.ClickerID)
		s.row(StylePlain, "Correct", fmt.Sprintf("%d / %d", p.CorrectAnswers, p.TotalQuestions))
		s.row(StylePlain, "Score", p.Score)
		s.row(StylePlain, "Correct Rate (%)", rate(p.CorrectAnswers, p.TotalQuestions))
		s.row(StylePlain, "Ranking", fmt.Sprintf("%d / %d", p.Rank, total))
		s.blank()
		writeAnswerBlock(s, rep.Questions, p)
		if s.err != nil {
			return s.err
		}
	}
	return nil
}

func renderByQuestion(sink Sink, rep *report.Report) error {
	s, err := openSheet(sink, "By Question")
	if err != nil {
		return err
	}
	stats := make(map[int64]report.QuestionStat, len(rep.QuestionAnalysis))
	for _, st := range rep.QuestionAnalysis {
		stats[st.QuestionID] = st
	}
	for i, q := range rep.Questions {
		if i > 0 {
			s.blank()
		}
		st := stats[q.QuestionID]
		s.row(StyleTitle, fmt.Sprintf("Q%d. %s", q.Order, q.Text))
		s.row(StylePlain, "Correct Answer", q.CorrectAnswer.Label())
		s.row(StylePlain, "Respondents", st.TotalAttempts)
		s.row(StylePlain, "Correct Rate (%)", st.Accuracy)
		s.row(StyleHeader, "Option", "Text", "Count", "Fraction", "Correct")
		correct := make(map[int]bool)
		for _, idx := range q.CorrectAnswer.Indices() {
			correct[idx] = true
		}
		for idx, text := range q.Options {
			count := 0
			if idx < len(st.OptionCounts) {
				count = st.OptionCounts[idx]
			}
			mark := ""
			if correct[idx] {
				mark = "yes"
			}
			s.row(StylePlain, optionLetter(idx), text, count, fraction(count, st.TotalAttempts), mark)
		}
	}
	return s.err
}

// writeAnswerBlock lists every exam question with the participant's pick.
// Options are shown 1-based; unanswered questions have an empty selection.
func writeAnswerBlock(s *sheet, questions []report.Question, p report.ParticipantResult) {
	byQuestion := make(map[int64]report.AnswerDetail, len(p.Answers))
	for _, a := range p.Answers {
		byQuestion[a.QuestionID] = a
	}
	s.row(StyleHeader, detailHeader...)
	for _, q := range questions {
		a, ok := byQuestion[q.QuestionID]
		if !ok {
			s.row(StylePlain, q.Order, q.Text, "", q.CorrectAnswer.Label(), "", 0)
			continue
		}
		s.row(StylePlain, q.Order, q.Text, a.Selected.Label(), q.CorrectAnswer.Label(), a.AnsweredAt, a.Earned)
	}
}

func optionLetter(idx int) string {
	if idx >= 0 && idx < 26 {
		return string(rune('A' + idx))
	}
	return fmt.Sprintf("%d", idx+1)
}

func fraction(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).DivRound(decimal.NewFromInt(int64(total)), 4).InexactFloat64()
}

func rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2).InexactFloat64()
}
