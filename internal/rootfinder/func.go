package rootfinder

// Func задаёт функцию одной переменной f(x), корень которой ищется.
// Ошибка вычисления прерывает поиск и возвращается вызывающему.
type Func interface {
	Eval(x float64) (float64, error)
}

// FuncOf позволяет использовать обычную функцию как Func.
type FuncOf func(x float64) float64

func (f FuncOf) Eval(x float64) (float64, error) {
	return f(x), nil
}
