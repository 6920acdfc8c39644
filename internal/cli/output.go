package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// --- Форматирование jobs ---

var jobHeaders = []string{"ID", "KIND", "STATUS", "ATTEMPTS", "RUN_AT", "LAST_ERROR"}

func jobRow(j domain.Job) []string {
	return []string{
		j.ID.String(),
		string(j.Kind),
		string(j.Status),
		strconv.Itoa(j.Attempts),
		j.RunAt.UTC().Format(time.RFC3339),
		truncate(j.LastError, 60),
	}
}

// --- Форматирование событий ---

var eventHeaders = []string{"ID", "INDEX", "TITLE", "STARTS_AT", "STATUS", "REMINDED"}

func eventRow(e domain.Event) []string {
	return []string{
		e.ID.String(),
		strconv.Itoa(e.OccurrenceIndex),
		truncate(e.Title, 30),
		e.StartsAt.UTC().Format(time.RFC3339),
		string(e.Status),
		strconv.FormatBool(e.ReminderSent),
	}
}

// truncate обрезает длинный текст ошибки для табличного вывода.
// JSON-режим всегда отдаёт полный текст.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
