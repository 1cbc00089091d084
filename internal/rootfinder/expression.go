package rootfinder

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Knetic/govaluate"
)

// evalFunc реализует Func на основе govaluate
type evalFunc struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// NewEvalFunc создаёт вычислимую функцию по строке f(x)
func NewEvalFunc(expr string) (Func, error) {
	funcs := map[string]govaluate.ExpressionFunction{
		"sin":  unary("sin", math.Sin),
		"cos":  unary("cos", math.Cos),
		"tan":  unary("tan", math.Tan),
		"exp":  unary("exp", math.Exp),
		"log":  unary("log", math.Log),
		"sqrt": unary("sqrt", math.Sqrt),
		"abs":  unary("abs", math.Abs),
		"pow": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("pow: ожидается 2 аргумента, получено %d", len(args))
			}
			return math.Pow(toFloat(args[0]), toFloat(args[1])), nil
		},
	}

	expr = normalizeDecimalComma(expr)

	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(expr, funcs)
	if err != nil {
		return nil, err
	}
	for _, tok := range parsed.Tokens() {
		if tok.Kind == govaluate.VARIABLE && tok.Value != "x" {
			return nil, fmt.Errorf("неизвестная переменная %v, допускается только x", tok.Value)
		}
	}

	return &evalFunc{src: expr, expr: parsed}, nil
}

// normalizeDecimalComma заменяет десятичную запятую на точку: "x - 0,5".
// Внутри скобок вызова функции запятая всегда разделяет аргументы,
// поэтому pow(2,3) остаётся pow(2,3), а дробные аргументы записываются
// через точку.
func normalizeDecimalComma(expr string) string {
	b := []byte(expr)
	var calls []bool // для каждой открытой скобки: это вызов функции
	for i := range b {
		switch b[i] {
		case '(':
			j := i - 1
			for j >= 0 && b[j] == ' ' {
				j--
			}
			calls = append(calls, j >= 0 && isIdentByte(b[j]))
		case ')':
			if len(calls) > 0 {
				calls = calls[:len(calls)-1]
			}
		case ',':
			if len(calls) > 0 && calls[len(calls)-1] {
				continue
			}
			if i > 0 && i+1 < len(b) && isDigit(b[i-1]) && isDigit(b[i+1]) {
				b[i] = '.'
			}
		}
	}
	return string(b)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isIdentByte(c byte) bool {
	return isDigit(c) || c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func unary(name string, fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: ожидается 1 аргумент, получено %d", name, len(args))
		}
		return fn(toFloat(args[0])), nil
	}
}

// Eval не меняет общего состояния, поэтому функцию можно вычислять
// из нескольких горутин одновременно.
func (f *evalFunc) Eval(x float64) (float64, error) {
	v, err := f.expr.Evaluate(map[string]interface{}{"x": x})
	if err != nil {
		return math.NaN(), err
	}

	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN(), err
		}
		return parsed, nil
	default:
		return math.NaN(), fmt.Errorf("выражение не вернуло число: %T", v)
	}
}

func (f *evalFunc) String() string {
	return f.src
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return math.NaN()
	}
}
