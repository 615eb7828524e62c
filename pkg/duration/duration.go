// Package duration はモデル設定の期間文字列を、編集用の（数値, 単位）の組と相互に変換します。
//
// 対応する表記は2つです。スケジュールと学習期間には "PT1H" や "P6M" のような
// ISO-8601 形式を、予測頻度には "15min" や "1h" のような pandas の頻度文字列を使います。
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Unit は {n} を含む単位のテンプレートです（例: "PT{n}H"）。
type Unit string

const placeholder = "{n}"

// ISO-8601 の単位
const (
	ISOMinute Unit = "PT{n}M"
	ISOHour   Unit = "PT{n}H"
	ISODay    Unit = "P{n}D"
	ISOWeek   Unit = "P{n}W"
	ISOMonth  Unit = "P{n}M"
	ISOYear   Unit = "P{n}Y"
)

// pandas の頻度の単位
const (
	PandasMinute Unit = "{n}min"
	PandasHour   Unit = "{n}h"
)

// Kind は表記の種類です。
type Kind int

const (
	ISO Kind = iota
	Pandas
)

var (
	isoPattern    = regexp.MustCompile(`^(PT|P)([1-9][0-9]*)([MHDWY])$`)
	pandasPattern = regexp.MustCompile(`^([1-9][0-9]*)(min|h)$`)
)

var unitNames = map[Unit]string{
	ISOMinute:    "minute",
	ISOHour:      "hour",
	ISODay:       "day",
	ISOWeek:      "week",
	ISOMonth:     "month",
	ISOYear:      "year",
	PandasMinute: "minute",
	PandasHour:   "hour",
}

// Duration は解析済みの期間です。対応する表記に一致しなければ Valid は false で、
// Value と Unit はゼロ値になります。
type Duration struct {
	Value int
	Unit  Unit
	Valid bool
}

// Option は単位の選択肢です。
type Option struct {
	Unit  Unit
	Label string
}

// ParseISO は ISO-8601 形式の期間を解析します。
func ParseISO(s string) Duration {
	m := isoPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Duration{}
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return Duration{}
	}

	var unit Unit
	switch m[1] + m[3] {
	case "PTM":
		unit = ISOMinute
	case "PTH":
		unit = ISOHour
	case "PD":
		unit = ISODay
	case "PW":
		unit = ISOWeek
	case "PM":
		unit = ISOMonth
	case "PY":
		unit = ISOYear
	default:
		// 日付の単位に PT、時刻の単位に P が付いたもの
		return Duration{}
	}
	return Duration{Value: n, Unit: unit, Valid: true}
}

// ParsePandas は pandas の頻度文字列を解析します。
func ParsePandas(s string) Duration {
	m := pandasPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Duration{}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Duration{}
	}
	unit := PandasHour
	if m[2] == "min" {
		unit = PandasMinute
	}
	return Duration{Value: n, Unit: unit, Valid: true}
}

// Parse は指定した表記で s を解析します。
func Parse(kind Kind, s string) Duration {
	if kind == Pandas {
		return ParsePandas(s)
	}
	return ParseISO(s)
}

// Format は単位のテンプレートに value を埋め込みます。
func Format(value int, unit Unit) string {
	return strings.Replace(string(unit), placeholder, strconv.Itoa(value), 1)
}

// String は有効な期間を文字列にします。無効な場合は "" を返します。
func (d Duration) String() string {
	if !d.Valid {
		return ""
	}
	return Format(d.Value, d.Unit)
}

// Describe は "2 days" のような表示用の文言を返します。
func Describe(d Duration) string {
	if !d.Valid {
		return "Unsupported"
	}
	name := unitNames[d.Unit]
	if d.Value != 1 {
		name += "s"
	}
	return fmt.Sprintf("%d %s", d.Value, name)
}

// Units は表記の単位の選択肢を小さい順に返します。
func Units(kind Kind) []Option {
	var units []Unit
	if kind == Pandas {
		units = []Unit{PandasMinute, PandasHour}
	} else {
		units = []Unit{ISOMinute, ISOHour, ISODay, ISOWeek, ISOMonth, ISOYear}
	}

	options := make([]Option, 0, len(units))
	for _, u := range units {
		options = append(options, Option{Unit: u, Label: unitNames[u] + "s"})
	}
	return options
}

// KnownUnit は unit が表記に含まれるかを返します。
func KnownUnit(kind Kind, unit Unit) bool {
	for _, o := range Units(kind) {
		if o.Unit == unit {
			return true
		}
	}
	return false
}

// Pattern は表記の対応する語彙だけを受け付ける入力パターンを返します。
func Pattern(kind Kind) string {
	if kind == Pandas {
		return `[1-9][0-9]*(min|h)`
	}
	return `PT[1-9][0-9]*[MH]|P[1-9][0-9]*[DWMY]`
}
