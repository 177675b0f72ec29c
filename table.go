package windgo

import (
	"fmt"
	"strings"
)

// Record 一行数据，字段名到取值的映射
type Record map[string]interface{}

// Table 行列式数据集
//
// 终端返回的是列式数据（每个字段一条序列），适配器统一转置为
// {行 = 数据点, 列 = 字段名} 的形态，与下游管线的表格约定一致。
type Table struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// NewTable 创建空表
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns, Rows: make([][]interface{}, 0)}
}

// Len 行数
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty 是否为空表
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// HasColumn 是否包含指定列
func (t *Table) HasColumn(name string) bool {
	return t.colIndex(name) >= 0
}

func (t *Table) colIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Col 返回指定列的全部取值，列不存在时返回 nil
func (t *Table) Col(name string) []interface{} {
	idx := t.colIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]interface{}, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// Value 返回指定行列的取值
func (t *Table) Value(row int, column string) interface{} {
	idx := t.colIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][idx]
}

// StringValue 返回指定行列的字符串取值，空值时返回 fallback
func (t *Table) StringValue(row int, column string, fallback string) string {
	v := t.Value(row, column)
	if v == nil {
		return fallback
	}
	s := cellString(v)
	if s == "" {
		return fallback
	}
	return s
}

// AddColumn 追加一列，取值不足的行补 nil
func (t *Table) AddColumn(name string, values []interface{}) {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		t.Rows[i] = append(t.Rows[i], v)
	}
}

// AddConstColumn 追加一列常量值
func (t *Table) AddConstColumn(name string, value interface{}) {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], value)
	}
}

// Records 按行返回字段名到取值的映射
func (t *Table) Records() []Record {
	if t == nil {
		return []Record{}
	}
	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		r := make(Record, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				r[c] = row[i]
			}
		}
		out = append(out, r)
	}
	return out
}

// Filter 返回满足条件的行组成的新表，列结构不变
func (t *Table) Filter(keep func(row []interface{}) bool) *Table {
	out := NewTable(t.Columns...)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// tableFromResponse 将终端的列式响应转置为行列表
//
// 响应中每个字段对应一条序列（resp.Data[i] 对应 resp.Fields[i]），
// 时序调用还带有与之平行的时间序列。timeColumn 非空时把时间序列
// 作为首列并入结果。
func tableFromResponse(resp *Response, timeColumn string) *Table {
	if resp == nil || len(resp.Fields) == 0 {
		return NewTable()
	}

	columns := make([]string, 0, len(resp.Fields)+1)
	if timeColumn != "" {
		columns = append(columns, timeColumn)
	}
	columns = append(columns, resp.Fields...)
	t := NewTable(columns...)

	// 行数取各序列的最大长度
	rows := 0
	for _, series := range resp.Data {
		if len(series) > rows {
			rows = len(series)
		}
	}
	if timeColumn != "" && len(resp.Times) > rows {
		rows = len(resp.Times)
	}

	for i := 0; i < rows; i++ {
		row := make([]interface{}, 0, len(columns))
		if timeColumn != "" {
			if i < len(resp.Times) {
				row = append(row, resp.Times[i])
			} else {
				row = append(row, nil)
			}
		}
		for f := range resp.Fields {
			if f < len(resp.Data) && i < len(resp.Data[f]) {
				row = append(row, resp.Data[f][i])
			} else {
				row = append(row, nil)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// translateColumns 按映射表追加标准列名
//
// 翻译是增量的：终端原始列保留，识别的列以标准名复制一份追加在后，
// 下游无论按哪套命名取数都能命中。
func translateColumns(t *Table, mapping [][2]string) {
	for _, m := range mapping {
		from, to := m[0], m[1]
		if !t.HasColumn(from) || t.HasColumn(to) {
			continue
		}
		t.AddColumn(to, t.Col(from))
	}
}

// cellString 单元格转字符串
func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// rowContains 判断某行在给定列中是否包含关键字（区分大小写的子串匹配）
func rowContains(t *Table, row []interface{}, keyword string, columns ...string) bool {
	for _, c := range columns {
		idx := t.colIndex(c)
		if idx < 0 || idx >= len(row) {
			continue
		}
		if strings.Contains(cellString(row[idx]), keyword) {
			return true
		}
	}
	return false
}
