package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"GoTM1Monitor/internal/model"
)

// printer 按输出格式打印结果
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, format: format}
}

// structured 以json或yaml输出v，表格格式时返回false
func (p *printer) structured(v interface{}) (bool, error) {
	switch p.format {
	case OutputJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

// table 用tabwriter打印对齐的表格
func (p *printer) table(headers []string, rows [][]string) error {
	w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// records 打印记录列表，表格只显示columns中的字段
func (p *printer) records(records []model.Record, columns ...string) error {
	if ok, err := p.structured(records); ok {
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cell(rec, strings.Split(col, ".")...)
		}
		rows = append(rows, row)
	}
	return p.table(columns, rows)
}

func (p *printer) users(users []model.User) error {
	if ok, err := p.structured(users); ok {
		return err
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.Name, u.FriendlyName, string(u.Type), strings.Join(u.Groups, ",")})
	}
	return p.table([]string{"Name", "FriendlyName", "Type", "Groups"}, rows)
}

func (p *printer) names(header string, names []string) error {
	if ok, err := p.structured(names); ok {
		return err
	}
	rows := make([][]string, 0, len(names))
	for _, n := range names {
		rows = append(rows, []string{n})
	}
	return p.table([]string{header}, rows)
}

// value 打印单个值，表格格式下直接输出
func (p *printer) value(v interface{}) error {
	if ok, err := p.structured(v); ok {
		return err
	}
	_, err := fmt.Fprintln(p.w, v)
	return err
}

// cell 取记录中的字段，数组显示元素个数
func cell(rec model.Record, path ...string) string {
	v, ok := rec.Lookup(path...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case []interface{}:
		return fmt.Sprint(len(t))
	case map[string]interface{}:
		if name, ok := t["Name"]; ok {
			return fmt.Sprint(name)
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}
