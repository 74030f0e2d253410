package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"pixie/internal/queen"
	"pixie/internal/taskqueue"
)

type statusCounts struct {
	total   int
	done    int
	failed  int
	running int
}

func countChildren(task queen.TaskStatus) statusCounts {
	counts := statusCounts{total: len(task.Children)}
	for _, child := range task.Children {
		switch child.Status {
		case taskqueue.StatusSuccess:
			counts.done++
		case taskqueue.StatusFailure:
			counts.failed++
		case taskqueue.StatusStarted:
			counts.running++
		}
	}
	return counts
}

// renderStatus writes the current task tree. On a terminal it draws a
// table; otherwise it emits one summary line per task so logs stay
// greppable.
func renderStatus(w io.Writer, tasks []queen.TaskStatus) {
	if isTerminal(w) {
		fmt.Fprintln(w, renderStatusTable(tasks))
		return
	}
	for _, task := range tasks {
		fmt.Fprintln(w, renderStatusLine(task))
	}
}

func renderStatusTable(tasks []queen.TaskStatus) string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		counts := countChildren(task)
		detail := ""
		if task.Err != nil {
			detail = task.Err.Error()
		} else if counts.failed > 0 {
			detail = firstChildFailure(task)
		}
		rows = append(rows, []string{
			task.Name,
			string(task.Status),
			strconv.Itoa(counts.done),
			strconv.Itoa(counts.failed),
			strconv.Itoa(counts.total),
			detail,
		})
	}
	return renderTable([]string{"Task", "Status", "Done", "Failed", "Total", "Detail"}, rows, 3, 4, 5)
}

func renderStatusLine(task queen.TaskStatus) string {
	counts := countChildren(task)
	line := fmt.Sprintf("%s: %s %d/%d downloaded", task.Name, task.Status, counts.done, counts.total)
	if counts.failed > 0 {
		line += fmt.Sprintf(" (%d failed)", counts.failed)
	}
	if task.Err != nil {
		line += " error=" + task.Err.Error()
	}
	return line
}

func firstChildFailure(task queen.TaskStatus) string {
	for _, child := range task.Children {
		if child.Status == taskqueue.StatusFailure && child.Err != nil {
			return fmt.Sprintf("illust %d: %s", child.IllustID, truncateDetail(child.Err.Error()))
		}
	}
	return ""
}

func truncateDetail(detail string) string {
	detail = strings.ReplaceAll(detail, "\n", "; ")
	const limit = 80
	if len(detail) <= limit {
		return detail
	}
	return detail[:limit-3] + "..."
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
