package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/brunobiangulo/goknow"
	"github.com/brunobiangulo/goknow/store"
)

const defaultHistoryShown = 5

// REPL is the interactive chat loop.
type REPL struct {
	engine  goknow.Engine
	in      io.Reader
	out     io.Writer
	verbose bool
	now     func() time.Time

	// history is this session's exchanges, oldest first.
	history []store.QueryLog
}

// NewREPL creates a chat loop reading questions from in.
func NewREPL(engine goknow.Engine, in io.Reader, out io.Writer, verbose bool) *REPL {
	return &REPL{engine: engine, in: in, out: out, verbose: verbose, now: time.Now}
}

// Run reads lines until EOF, an exit word or ctx is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	r.welcome()
	sc := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, promptStyle.Render("\n> "))
		if !sc.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit", "thoát":
			r.goodbye()
			return nil
		}
		if strings.HasPrefix(line, "/") {
			if done := r.command(ctx, line); done {
				return nil
			}
			continue
		}
		r.ask(ctx, line)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "\nThoát ứng dụng...")
	return nil
}

func (r *REPL) ask(ctx context.Context, question string) {
	fmt.Fprintln(r.out, dimStyle.Render("Đang xử lý yêu cầu của bạn..."))
	ans, err := r.engine.Ask(ctx, question)
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render("Đã xảy ra lỗi: "+err.Error()))
		return
	}
	r.history = append(r.history, store.QueryLog{
		ID:         ans.ID,
		Question:   question,
		Answer:     ans.Text,
		Confidence: ans.Confidence,
		CreatedAt:  r.now().UTC().Format(time.RFC3339),
	})
	renderAnswer(r.out, ans, r.verbose)
}

// command runs a slash command and reports whether the loop should end.
func (r *REPL) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "/help":
		r.help()
	case "/exit", "/quit":
		r.goodbye()
		return true
	case "/history":
		limit := defaultHistoryShown
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				limit = n
			}
		}
		recent := r.history[max(0, len(r.history)-limit):]
		renderHistory(r.out, recent, r.now())
	case "/clear":
		fmt.Fprint(r.out, "\033[H\033[2J")
	case "/stats":
		stats, err := r.engine.Stats(ctx)
		if err != nil {
			fmt.Fprintln(r.out, errorStyle.Render("Đã xảy ra lỗi: "+err.Error()))
			return false
		}
		renderStats(r.out, stats, len(r.history))
	default:
		fmt.Fprintln(r.out, errorStyle.Render("Lệnh không được hỗ trợ: "+cmd))
		fmt.Fprintln(r.out, "Gõ /help để xem danh sách lệnh")
	}
	return false
}

func (r *REPL) welcome() {
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, titleStyle.Render("goknow - Trợ lý tri thức tự học"))
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "Nhập câu hỏi hoặc yêu cầu của bạn")
	fmt.Fprintln(r.out, "Gõ /help để xem trợ giúp hoặc exit để thoát")
	fmt.Fprintln(r.out, rule)
}

func (r *REPL) help() {
	fmt.Fprintln(r.out, titleStyle.Render("\n=== Trợ giúp ==="))
	fmt.Fprintln(r.out, "Các lệnh có sẵn:")
	fmt.Fprintln(r.out, "  /help         - Hiển thị trợ giúp này")
	fmt.Fprintln(r.out, "  /exit, /quit  - Thoát ứng dụng")
	fmt.Fprintln(r.out, "  /history [n]  - Hiển thị lịch sử tương tác")
	fmt.Fprintln(r.out, "  /clear        - Xóa màn hình")
	fmt.Fprintln(r.out, "  /stats        - Hiển thị thống kê về hệ thống")
	fmt.Fprintln(r.out, "\nCách sử dụng:")
	fmt.Fprintln(r.out, "- Nhập câu hỏi trực tiếp để hỏi")
	fmt.Fprintln(r.out, "- Lệnh đặc biệt bắt đầu bằng dấu /")
}

func (r *REPL) goodbye() {
	fmt.Fprintln(r.out, "Cảm ơn bạn đã sử dụng. Tạm biệt!")
}
