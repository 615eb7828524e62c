// Package form は画面の入力項目と、その制約の検証を扱います。
package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"ml-forecast-admin/pkg/duration"

	"github.com/go-playground/validator/v10"
)

// Kind は入力項目の部品の種類です。
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindCheckbox Kind = "checkbox"
	KindSelect   Kind = "select"
	KindDuration Kind = "duration"
)

// Option は選択肢です。
type Option struct {
	Value string
	Label string
}

// Rules は入力項目に宣言された制約です。
type Rules struct {
	Required  bool
	Min       *float64
	Max       *float64
	MinLength int
	MaxLength int
	Pattern   string
	// Integer は小数を拒否します。
	Integer bool
}

// Field は画面の1つの入力項目です。
type Field struct {
	Name    string
	Label   string
	Kind    Kind
	Value   string
	Checked bool
	Step    string
	Options []Option
	// Notation は KindDuration の項目で使います。
	Notation duration.Kind
	Rules    Rules
	Error    string
}

// Bound は Rules.Min と Rules.Max 用に v のポインタを返します。
func Bound(v float64) *float64 { return &v }

var validate = validator.New()

// patterns はコンパイル済みの Rules.Pattern です。無効なパターンは nil で保持します。
var patterns sync.Map

func compilePattern(pattern string) *regexp.Regexp {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		re = nil
	}
	actual, _ := patterns.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp)
}

// Check は現在の値を制約で検証し、利用者向けのメッセージを返します。問題がなければ "" です。
func (f Field) Check() string {
	if f.Kind == KindCheckbox {
		return ""
	}

	value := strings.TrimSpace(f.Value)
	if value == "" {
		if f.Rules.Required {
			return fmt.Sprintf("%s is required", f.Label)
		}
		return ""
	}

	if f.Kind == KindNumber {
		return f.checkNumber(value)
	}

	if tag := lengthTag(f.Rules); tag != "" {
		if err := validate.Var(value, tag); err != nil {
			return fmt.Sprintf("%s must be between %d and %d characters", f.Label, f.Rules.MinLength, f.Rules.MaxLength)
		}
	}
	if f.Rules.Pattern != "" {
		re := compilePattern(f.Rules.Pattern)
		if re == nil || !re.MatchString(value) {
			return fmt.Sprintf("%s has an invalid format", f.Label)
		}
	}
	if f.Kind == KindSelect && len(f.Options) > 0 && !f.hasOption(value) {
		return fmt.Sprintf("%s has an unknown value", f.Label)
	}
	return ""
}

func (f Field) checkNumber(value string) string {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Sprintf("%s must be a number", f.Label)
	}
	if f.Rules.Integer && n != float64(int64(n)) {
		return fmt.Sprintf("%s must be a whole number", f.Label)
	}

	var tags []string
	if f.Rules.Min != nil {
		tags = append(tags, "gte="+strconv.FormatFloat(*f.Rules.Min, 'f', -1, 64))
	}
	if f.Rules.Max != nil {
		tags = append(tags, "lte="+strconv.FormatFloat(*f.Rules.Max, 'f', -1, 64))
	}
	if len(tags) == 0 {
		return ""
	}
	if err := validate.Var(n, strings.Join(tags, ",")); err != nil {
		return fmt.Sprintf("%s must be %s", f.Label, rangeText(f.Rules))
	}
	return ""
}

func (f Field) hasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

func lengthTag(r Rules) string {
	var tags []string
	if r.MinLength > 0 {
		tags = append(tags, "min="+strconv.Itoa(r.MinLength))
	}
	if r.MaxLength > 0 {
		tags = append(tags, "max="+strconv.Itoa(r.MaxLength))
	}
	return strings.Join(tags, ",")
}

func rangeText(r Rules) string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("between %g and %g", *r.Min, *r.Max)
	case r.Min != nil:
		return fmt.Sprintf("at least %g", *r.Min)
	default:
		return fmt.Sprintf("at most %g", *r.Max)
	}
}

// CheckAll はすべての項目に Check を実行し、メッセージを項目に格納します。
// 項目名ごとのメッセージを返し、空であればすべて有効です。
func CheckAll(fields []Field) map[string]string {
	errs := map[string]string{}
	for i := range fields {
		fields[i].Error = fields[i].Check()
		if fields[i].Error != "" {
			errs[fields[i].Name] = fields[i].Error
		}
	}
	return errs
}

// FormatFloat は末尾の0を付けずに入力値用の数値文字列を返します。
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
