package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"library-ledger/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// Widest a free-text column gets when output is not a terminal.
	defaultColumnWidth = 50
	minColumnWidth     = 10
)

// printer renders results as an aligned table or as JSON.
type printer struct {
	out    io.Writer
	asJSON bool
	width  int
}

func newPrinter(out io.Writer, format string) *printer {
	p := &printer{out: out, asJSON: format == "json"}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.width = w
		}
	}
	return p
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table prints rows under headers. Columns listed in wide are free text and
// are truncated to share whatever terminal width is left.
func (p *printer) table(headers []string, rows [][]string, wide ...int) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(p.out, "(none)")
		return err
	}

	limit := p.columnLimit(headers, rows, wide)
	isWide := map[int]bool{}
	for _, c := range wide {
		isWide[c] = true
	}

	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if isWide[i] {
				cell = truncateString(cell, limit)
			}
			cells[i] = cell
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func (p *printer) columnLimit(headers []string, rows [][]string, wide []int) int {
	if p.width == 0 || len(wide) == 0 {
		return defaultColumnWidth
	}

	isWide := map[int]bool{}
	for _, c := range wide {
		isWide[c] = true
	}
	fixed := 0
	for i, h := range headers {
		if isWide[i] {
			continue
		}
		w := len(h)
		for _, row := range rows {
			if i < len(row) && len(row[i]) > w {
				w = len(row[i])
			}
		}
		fixed += w + 2
	}

	limit := (p.width - fixed) / len(wide)
	return max(limit-2, minColumnWidth)
}

func (p *printer) message(format string, args ...any) error {
	_, err := fmt.Fprintf(p.out, format+"\n", args...)
	return err
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}

// ------------------ Renderers ------------------

func date(t time.Time) string { return t.Format(time.DateOnly) }

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func (p *printer) books(books []library.Book) error {
	if p.asJSON {
		return p.json(books)
	}
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		year := "-"
		if b.Year != nil {
			year = strconv.Itoa(*b.Year)
		}
		rows = append(rows, []string{
			strconv.FormatInt(b.ID, 10), b.Title, b.Author, year,
			fmt.Sprintf("%d/%d", b.AvailableCopies, b.TotalCopies),
		})
	}
	return p.table([]string{"ID", "TITLE", "AUTHOR", "YEAR", "AVAILABLE"}, rows, 1, 2)
}

func (p *printer) users(users []library.User) error {
	if p.asJSON {
		return p.json(users)
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{strconv.FormatInt(u.ID, 10), u.Name, optional(u.Phone), optional(u.Email)})
	}
	return p.table([]string{"ID", "NAME", "PHONE", "EMAIL"}, rows, 1)
}

func returned(l library.Loan) string {
	if l.ReturnDate == nil {
		return "-"
	}
	return date(*l.ReturnDate)
}

func (p *printer) loans(loans []library.Loan) error {
	if p.asJSON {
		return p.json(loans)
	}
	rows := make([][]string, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, []string{
			l.ID.String(), strconv.FormatInt(l.UserID, 10), strconv.FormatInt(l.BookID, 10),
			date(l.BorrowDate), date(l.DueDate), returned(l), string(l.Status),
		})
	}
	return p.table([]string{"LOAN", "USER", "BOOK", "BORROWED", "DUE", "RETURNED", "STATUS"}, rows)
}

func (p *printer) loanDetails(loans []library.LoanDetail) error {
	if p.asJSON {
		return p.json(loans)
	}
	rows := make([][]string, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, []string{
			l.ID.String(), l.UserName, l.Title, l.Author,
			date(l.BorrowDate), date(l.DueDate), returned(l.Loan), string(l.Status),
		})
	}
	return p.table([]string{"LOAN", "USER", "TITLE", "AUTHOR", "BORROWED", "DUE", "RETURNED", "STATUS"}, rows, 1, 2, 3)
}

func (p *printer) debt(d library.DebtSummary) error {
	if p.asJSON {
		return p.json(d)
	}
	return p.table([]string{"USER", "SETTLED", "PROJECTED", "TOTAL", "OVERDUE LOANS"}, [][]string{{
		strconv.FormatInt(d.UserID, 10), d.Settled.String(), d.Projected.String(), d.Total.String(),
		strconv.Itoa(d.OverdueLoans),
	}})
}
