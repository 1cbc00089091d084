package rootfinder

import "math"

// StepKind указывает, как была выбрана очередная точка.
type StepKind int

const (
	Bisection StepKind = iota
	Secant
	InverseQuadratic
)

func (k StepKind) String() string {
	switch k {
	case Bisection:
		return "bisection"
	case Secant:
		return "secant"
	case InverseQuadratic:
		return "inverse-quadratic"
	}
	return "unknown"
}

func (k StepKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Iter описывает одну итерацию поиска корня
type Iter struct {
	K int `json:"k"`

	// B содержит текущее лучшее приближение, корень лежит между B и C.
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	C  float64 `json:"c"`
	FB float64 `json:"fb"`

	Step        float64  `json:"step"`
	Kind        StepKind `json:"kind"`
	Width       float64  `json:"width"`
	Evaluations int      `json:"evaluations"`
}

// brent реализует алгоритм zeroin (Brent, 1973; Forsythe, Malcolm, Moler).
//
// b всегда лучшее приближение, b и c ограничивают корень, a хранит
// предыдущее значение b. Шаг интерполяции принимается, только если
// он попадает внутрь [b, c] и быстро уменьшается; иначе интервал
// делится пополам.
func (s *Solver) brent(ev *evaluator, lo, hi, flo, fhi float64) (float64, float64, error) {
	a, fa := lo, flo
	b, fb := hi, fhi
	c, fc := a, fa
	d := b - a
	e := d

	for {
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol := s.tolerance(b)
		// половины считаются отдельно, чтобы c-b не переполнялось
		m := 0.5*c - 0.5*b
		if math.Abs(m) <= tol || s.accepted(fb) {
			return b, fb, nil
		}

		kind := Bisection
		if math.Abs(e) < tol || math.Abs(fa) <= math.Abs(fb) {
			d = m
			e = d
		} else {
			r3 := fb / fa
			var p, q float64
			if a == c {
				p = 2 * m * r3
				q = 1 - r3
				kind = Secant
			} else {
				q = fa / fc
				r1 := fb / fc
				p = r3 * (2*m*q*(q-r1) - (b-a)*(r1-1))
				q = (q - 1) * (r1 - 1) * (r3 - 1)
				kind = InverseQuadratic
			}
			if p > 0 {
				q = -q
			} else {
				p = -p
			}

			prev := e
			e = d
			if p >= 1.5*m*q-math.Abs(tol*q) || p >= math.Abs(0.5*prev*q) {
				// шаг вне интервала или сходимость медленная
				d = m
				e = d
				kind = Bisection
			} else {
				d = p / q
			}
		}

		a, fa = b, fb
		switch {
		case math.Abs(d) > tol:
			b += d
		case m > 0:
			b += tol
		default:
			b -= tol
		}

		var err error
		if fb, err = ev.eval(b); err != nil {
			return b, fb, err
		}
		if (fb > 0 && fc > 0) || (fb <= 0 && fc <= 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}

		err = ev.report(Iter{
			A:     a,
			B:     b,
			C:     c,
			FB:    fb,
			Step:  b - a,
			Kind:  kind,
			Width: math.Abs(c - b),
		})
		if err != nil {
			return b, fb, err
		}
	}
}
