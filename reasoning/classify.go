package reasoning

import (
	"strings"

	"github.com/brunobiangulo/goknow/nlp"
)

// QuestionType selects the answer template.
type QuestionType string

const (
	Definition  QuestionType = "definition"
	Explanation QuestionType = "explanation"
	HowTo       QuestionType = "how_to"
	Example     QuestionType = "example"
	Comparison  QuestionType = "comparison"
	List        QuestionType = "list"
	Information QuestionType = "information"
)

// cues are checked in order; the first type with a matching phrase wins.
var cues = []struct {
	typ     QuestionType
	phrases []string
}{
	{Definition, []string{"là gì", "định nghĩa", "khái niệm", "nghĩa là gì", "what is", "what are", "define", "definition", "meaning of"}},
	{Explanation, []string{"tại sao", "vì sao", "lý do", "nguyên nhân", "why", "reason", "cause of"}},
	{HowTo, []string{"làm thế nào", "làm sao", "cách", "phương pháp", "hướng dẫn", "how to", "how do", "how can", "steps to"}},
	{Example, []string{"ví dụ", "minh họa", "example", "for instance"}},
	{Comparison, []string{"so sánh", "khác nhau", "giống nhau", "khác biệt", "compare", "difference", "versus", " vs "}},
	{List, []string{"liệt kê", "danh sách", "các loại", "những loại", "list", "types of", "kinds of"}},
}

func init() {
	for i := range cues {
		for j, p := range cues[i].phrases {
			cues[i].phrases[j] = nlp.Fold(p)
		}
	}
}

// ClassifyQuestion maps a question to the template family that answers it.
func ClassifyQuestion(query string) QuestionType {
	q := nlp.Fold(query)
	for _, c := range cues {
		for _, p := range c.phrases {
			if strings.Contains(q, p) {
				return c.typ
			}
		}
	}
	return Information
}
