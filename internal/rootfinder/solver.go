// Package rootfinder ищет нуль непрерывной функции одной переменной
// внутри заданного интервала, где функция меняет знак.
//
// Основной метод Брента (zeroin) сочетает обратную квадратичную
// интерполяцию, метод секущих и деление пополам; Bisect оставлен как
// эталонный медленный метод.
package rootfinder

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxEvaluations ограничивает число вычислений функции,
// если вызов не задаёт своё ограничение.
const DefaultMaxEvaluations = 100

// Solver хранит требования к точности. После создания не меняется,
// поэтому один Solver можно использовать из нескольких горутин.
type Solver struct {
	absoluteAccuracy      float64
	relativeAccuracy      float64
	functionValueAccuracy float64
}

// NewSolver создаёт решатель. Все три точности обязательны и должны
// быть положительными.
func NewSolver(absoluteAccuracy, relativeAccuracy, functionValueAccuracy float64) (*Solver, error) {
	for _, v := range []float64{absoluteAccuracy, relativeAccuracy, functionValueAccuracy} {
		if !(v > 0) || math.IsInf(v, 1) {
			return nil, fmt.Errorf("%w: absolute=%g relative=%g function=%g",
				ErrInvalidAccuracy, absoluteAccuracy, relativeAccuracy, functionValueAccuracy)
		}
	}
	return &Solver{
		absoluteAccuracy:      absoluteAccuracy,
		relativeAccuracy:      relativeAccuracy,
		functionValueAccuracy: functionValueAccuracy,
	}, nil
}

// Точности, с которыми создан решатель.
func (s *Solver) AbsoluteAccuracy() float64      { return s.absoluteAccuracy }
func (s *Solver) RelativeAccuracy() float64      { return s.relativeAccuracy }
func (s *Solver) FunctionValueAccuracy() float64 { return s.functionValueAccuracy }

// Problem описывает один поиск корня.
type Problem struct {
	Lo, Hi float64

	// Initial используется только при HasInitial; иначе стартовой
	// точкой служит середина интервала.
	Initial    float64
	HasInitial bool

	// MaxEvaluations <= 0 означает DefaultMaxEvaluations.
	MaxEvaluations int
}

// Result содержит найденный корень и затраты на его поиск.
type Result struct {
	Root        float64 `json:"root"`
	Value       float64 `json:"value"`
	Evaluations int     `json:"evaluations"`
	Iterations  int     `json:"iterations"`
}

// FindRoot ищет корень f на [lo, hi].
//
// Стартовой точкой служит середина интервала, и f вычисляется сначала
// в ней, затем в lo и hi. Поэтому корень будет найден и тогда, когда
// f(lo) и f(hi) одного знака, но знак меняется между lo и серединой или
// между серединой и hi; ошибка ErrNoBracketing возвращается, только если
// ни одна из этих половин не ограничивает корень. Корень в lo обходится
// в два вычисления (середина, затем lo).
func (s *Solver) FindRoot(f Func, lo, hi float64) (float64, error) {
	return s.FindRootMaxEval(f, lo, hi, DefaultMaxEvaluations)
}

// FindRootMaxEval ищет корень f на [lo, hi], вычисляя f не более
// maxEvaluations раз.
func (s *Solver) FindRootMaxEval(f Func, lo, hi float64, maxEvaluations int) (float64, error) {
	res, err := s.Solve(f, Problem{Lo: lo, Hi: hi, MaxEvaluations: maxEvaluations}, nil)
	return res.Root, err
}

// FindRootGuess ищет корень f на [lo, hi], начиная с initial,
// который должен лежать строго внутри интервала.
func (s *Solver) FindRootGuess(f Func, lo, initial, hi float64) (float64, error) {
	res, err := s.Solve(f, Problem{Lo: lo, Hi: hi, Initial: initial, HasInitial: true}, nil)
	return res.Root, err
}

// Solve ищет корень методом Брента. onIter (может быть nil) вызывается
// после каждой итерации; если он вернёт ошибку, поиск прерывается.
func (s *Solver) Solve(f Func, p Problem, onIter func(Iter) error) (Result, error) {
	return s.run(f, p, onIter, s.brent)
}

// Bisect ищет корень делением пополам. Предусловия и ошибки те же,
// что и у Solve.
func (s *Solver) Bisect(f Func, p Problem, onIter func(Iter) error) (Result, error) {
	return s.run(f, p, onIter, s.bisect)
}

// iterateFunc сужает интервал [lo, hi], на концах которого f имеет
// строго разные знаки.
type iterateFunc func(ev *evaluator, lo, hi, flo, fhi float64) (x, fx float64, err error)

func (s *Solver) run(f Func, p Problem, onIter func(Iter) error, iterate iterateFunc) (Result, error) {
	if p.Lo > p.Hi {
		return failed(0, 0), &SolverError{Kind: InvalidInterval, Lo: p.Lo, Hi: p.Hi}
	}
	initial := midpoint(p.Lo, p.Hi)
	if p.HasInitial {
		if !(p.Lo < p.Initial && p.Initial < p.Hi) {
			return failed(0, 0), &SolverError{Kind: OutOfRange, Lo: p.Lo, Initial: p.Initial, Hi: p.Hi}
		}
		initial = p.Initial
	}

	ev := &evaluator{f: f, max: p.MaxEvaluations, onIter: onIter}
	if ev.max <= 0 {
		ev.max = DefaultMaxEvaluations
	}

	fInitial, err := ev.eval(initial)
	if err != nil {
		return ev.failed(), err
	}
	if s.accepted(fInitial) {
		return ev.result(initial, fInitial), nil
	}
	if p.Lo == p.Hi {
		return ev.failed(), &SolverError{Kind: NoBracketing, Lo: p.Lo, Initial: initial, Hi: p.Hi,
			FLo: fInitial, FHi: fInitial, Evaluations: ev.n}
	}

	fLo, err := ev.eval(p.Lo)
	if err != nil {
		return ev.failed(), err
	}
	if s.accepted(fLo) {
		return ev.result(p.Lo, fLo), nil
	}
	if fInitial*fLo < 0 {
		return ev.finish(iterate(ev, p.Lo, initial, fLo, fInitial))
	}

	fHi, err := ev.eval(p.Hi)
	if err != nil {
		return ev.failed(), err
	}
	if s.accepted(fHi) {
		return ev.result(p.Hi, fHi), nil
	}
	if fInitial*fHi < 0 {
		return ev.finish(iterate(ev, initial, p.Hi, fInitial, fHi))
	}

	return ev.failed(), &SolverError{Kind: NoBracketing, Lo: p.Lo, Initial: initial, Hi: p.Hi,
		FLo: fLo, FHi: fHi, Evaluations: ev.n}
}

// midpoint не переполняется даже для [-MaxFloat64, MaxFloat64].
func midpoint(lo, hi float64) float64 {
	return 0.5*lo + 0.5*hi
}

func (s *Solver) accepted(fx float64) bool {
	return math.Abs(fx) <= s.functionValueAccuracy
}

// tolerance возвращает допустимую погрешность вблизи x.
func (s *Solver) tolerance(x float64) float64 {
	return 2*epsilon*math.Abs(x) + s.relativeAccuracy*math.Abs(x) + s.absoluteAccuracy
}

// epsilon задаёт машинную точность float64.
const epsilon = 0x1p-52

// evaluator считает вычисления f и итерации одного вызова.
type evaluator struct {
	f      Func
	n      int
	max    int
	iters  int
	onIter func(Iter) error
}

func (ev *evaluator) eval(x float64) (float64, error) {
	if ev.n >= ev.max {
		return math.NaN(), &SolverError{Kind: TooManyEvaluations, Evaluations: ev.n}
	}
	ev.n++
	y, err := ev.f.Eval(x)
	if err != nil {
		return y, fmt.Errorf("rootfinder: f(%g): %w", x, err)
	}
	return y, nil
}

func (ev *evaluator) report(it Iter) error {
	ev.iters++
	if ev.onIter == nil {
		return nil
	}
	it.K = ev.iters
	it.Evaluations = ev.n
	if err := ev.onIter(it); err != nil {
		if errors.Is(err, ErrStopped) {
			return ErrStopped
		}
		return err
	}
	return nil
}

func (ev *evaluator) result(x, fx float64) Result {
	return Result{Root: x, Value: fx, Evaluations: ev.n, Iterations: ev.iters}
}

func (ev *evaluator) failed() Result {
	return failed(ev.n, ev.iters)
}

func (ev *evaluator) finish(x, fx float64, err error) (Result, error) {
	if err != nil {
		return ev.failed(), err
	}
	return ev.result(x, fx), nil
}

func failed(evaluations, iterations int) Result {
	return Result{Root: math.NaN(), Value: math.NaN(), Evaluations: evaluations, Iterations: iterations}
}
