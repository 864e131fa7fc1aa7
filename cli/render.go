package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/brunobiangulo/goknow"
	"github.com/brunobiangulo/goknow/learner"
	"github.com/brunobiangulo/goknow/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

const rule = "============================================================"

// historyPreviewRunes bounds answers shown in history listings.
const historyPreviewRunes = 100

func renderAnswer(w io.Writer, ans *goknow.Answer, verbose bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Trả lời:"))
	fmt.Fprintln(w, answerStyle.Render(ans.Text))

	if !verbose {
		return
	}
	fmt.Fprintln(w, dimStyle.Render("Thông tin thêm:"))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("- Độ tin cậy: %.2f", ans.Confidence)))
	if len(ans.Sources) > 0 {
		fmt.Fprintln(w, dimStyle.Render("- Nguồn: "+strings.Join(ans.Sources, ", ")))
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("- Thời gian xử lý: %.2f giây", ans.ProcessTime)))
	if ans.QuestionType != "" {
		fmt.Fprintln(w, dimStyle.Render("- Loại câu hỏi: "+string(ans.QuestionType)))
	}
	if ans.Collected {
		fmt.Fprintln(w, dimStyle.Render("- Đã thu thập thông tin mới"))
	}
}

func renderStats(w io.Writer, s *goknow.Stats, interactions int) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("=== Thống kê hệ thống ==="))
	fmt.Fprintf(w, "Tổng số thực thể: %s\n", humanize.Comma(int64(s.Nodes)))
	fmt.Fprintf(w, "Tổng số mối quan hệ: %s\n", humanize.Comma(int64(s.Edges)))
	fmt.Fprintf(w, "Thành phần liên thông: %d\n", s.Components)

	if len(s.Types) > 0 {
		fmt.Fprintln(w, "\nLoại thực thể:")
		types := make([]string, 0, len(s.Types))
		for t := range s.Types {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "  - %s: %s\n", t, humanize.Comma(int64(s.Types[t])))
		}
	}

	if len(s.Central) > 0 {
		fmt.Fprintln(w, "\nThực thể trung tâm:")
		for _, r := range s.Central {
			name := r.Name
			if name == "" {
				name = r.ID
			}
			fmt.Fprintf(w, "  - %s %s\n", name, dimStyle.Render(fmt.Sprintf("(%.3f)", r.Score)))
		}
	}

	fmt.Fprintf(w, "\nTệp đồ thị: %s (%s, %d bản sao lưu)\n", s.GraphFile, humanize.Bytes(uint64(s.GraphBytes)), s.Backups)
	if s.History != nil {
		fmt.Fprintf(w, "Câu hỏi đã lưu: %s, lần học: %s\n",
			humanize.Comma(int64(s.History.Queries)), humanize.Comma(int64(s.History.Learns)))
	}
	if len(s.Sources) > 0 {
		fmt.Fprintf(w, "Nguồn thu thập: %s\n", strings.Join(s.Sources, ", "))
	}
	if interactions >= 0 {
		fmt.Fprintf(w, "\nSố lần tương tác: %d\n", interactions)
	}
}

func renderHistory(w io.Writer, entries []store.QueryLog, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Chưa có lịch sử tương tác")
		return
	}
	fmt.Fprintln(w, titleStyle.Render("=== Lịch sử tương tác ==="))
	for i, e := range entries {
		when := e.CreatedAt
		if t, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
			when = humanize.RelTime(t, now, "trước", "sau")
		}
		fmt.Fprintf(w, "\n%d. %s\n", i+1, dimStyle.Render("["+when+"]"))
		fmt.Fprintf(w, "Q: %s\n", e.Question)
		fmt.Fprintf(w, "A: %s\n", preview(e.Answer))
	}
}

func renderLearn(w io.Writer, s learner.Stats) {
	fmt.Fprintf(w, "Đã học %s bản ghi: %s thực thể mới, %s thực thể cập nhật, %s mối quan hệ (%s bị loại)\n",
		humanize.Comma(int64(s.Records)),
		humanize.Comma(int64(s.EntitiesCreated)),
		humanize.Comma(int64(s.EntitiesMerged)),
		humanize.Comma(int64(s.RelationsAdded)),
		humanize.Comma(int64(s.Rejected)))
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= historyPreviewRunes {
		return s
	}
	return string(r[:historyPreviewRunes]) + "..."
}
