package reasoning

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/goknow/nlp"
)

// Answer texts are Vietnamese, the product's language.
const (
	msgNoInformation  = "Tôi không có đủ thông tin để trả lời câu hỏi này."
	msgError          = "Đã xảy ra lỗi khi xử lý câu hỏi của bạn."
	msgNoDefinition   = "Tôi biết về %s nhưng không có định nghĩa cụ thể."
	msgNoExplanation  = "Tôi không có đủ thông tin để giải thích câu hỏi này."
	msgNoHowTo        = "Tôi không có hướng dẫn cụ thể cho câu hỏi này."
	msgNoExample      = "Tôi không có ví dụ cụ thể, nhưng đây là thông tin về %s:\n\n%s"
	msgNoComparison   = "Tôi không có đủ thông tin để so sánh các đối tượng trong câu hỏi của bạn."
	msgNoList         = "Tôi không có thông tin để liệt kê cho câu hỏi này."
	msgNoInfoSpecific = "Tôi không có thông tin cụ thể cho câu hỏi này."

	headerHowTo   = "Đây là hướng dẫn:\n\n"
	headerExample = "Ví dụ:\n\n"
	headerList    = "Danh sách:\n\n"
	exampleCue    = "ví dụ"
)

const (
	explanationNodes = 3
	howToNodes       = 2
	howToMinRunes    = 50
	listItems        = 5
	informationNodes = 3
)

// named returns the nodes whose name contains a keyword of query.
func (e *Engine) named(query string, nodes []nodeContent) []nodeContent {
	keywords := e.keywords.Keywords(query)
	var out []nodeContent
	for _, n := range nodes {
		name := nlp.Fold(n.name)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

func (e *Engine) answerDefinition(query string, nodes []nodeContent) string {
	best := nodes[0]
	if named := e.named(query, nodes); len(named) > 0 {
		best = named[0]
	}
	if best.text == "" {
		return fmt.Sprintf(msgNoDefinition, best.name)
	}
	return best.name + " là " + best.text
}

func answerExplanation(nodes []nodeContent) string {
	texts := nonEmptyTexts(head(nodes, explanationNodes))
	if len(texts) == 0 {
		return msgNoExplanation
	}
	return strings.Join(texts, "\n\n")
}

func answerHowTo(nodes []nodeContent) string {
	var b strings.Builder
	n := 0
	for _, node := range nodes {
		if len([]rune(node.text)) <= howToMinRunes {
			continue
		}
		if n == 0 {
			b.WriteString(headerHowTo)
		}
		b.WriteString(node.text)
		b.WriteString("\n\n")
		if n++; n == howToNodes {
			break
		}
	}
	if n == 0 {
		return msgNoHowTo
	}
	return b.String()
}

func answerExample(nodes []nodeContent) string {
	var examples []string
	for _, n := range nodes {
		if strings.Contains(nlp.Fold(n.text), exampleCue) {
			examples = append(examples, n.text)
		}
	}
	if len(examples) == 0 {
		return fmt.Sprintf(msgNoExample, nodes[0].name, nodes[0].text)
	}
	return headerExample + strings.Join(examples, "\n\n")
}

func (e *Engine) answerComparison(query string, nodes []nodeContent) string {
	named := e.named(query, nodes)
	if len(named) < 2 {
		return msgNoComparison
	}
	a, b := named[0], named[1]
	return fmt.Sprintf("So sánh giữa %s và %s:\n\n- %s: %s\n\n- %s: %s\n\n",
		a.name, b.name, a.name, a.text, b.name, b.text)
}

func answerList(nodes []nodeContent) string {
	items := make([]string, 0, listItems)
	for _, n := range head(nodes, listItems) {
		items = append(items, "- "+n.name+": "+n.text)
	}
	if len(items) == 0 {
		return msgNoList
	}
	return headerList + strings.Join(items, "\n\n")
}

func answerInformation(nodes []nodeContent) string {
	texts := nonEmptyTexts(head(nodes, informationNodes))
	if len(texts) == 0 {
		return msgNoInfoSpecific
	}
	return strings.Join(texts, "\n\n")
}

func head(nodes []nodeContent, n int) []nodeContent {
	if len(nodes) > n {
		return nodes[:n]
	}
	return nodes
}

func nonEmptyTexts(nodes []nodeContent) []string {
	var out []string
	for _, n := range nodes {
		if n.text != "" {
			out = append(out, n.text)
		}
	}
	return out
}
