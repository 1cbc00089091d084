package rootfinder

import "math"

// bisect делит интервал пополам, пока его половина не станет меньше
// допустимой погрешности. Возвращает конец интервала с меньшим |f|.
func (s *Solver) bisect(ev *evaluator, lo, hi, flo, fhi float64) (float64, float64, error) {
	for {
		mid := midpoint(lo, hi)
		half := 0.5*hi - 0.5*lo
		if half <= s.tolerance(mid) || mid == lo || mid == hi {
			if math.Abs(flo) <= math.Abs(fhi) {
				return lo, flo, nil
			}
			return hi, fhi, nil
		}

		fmid, err := ev.eval(mid)
		if err != nil {
			return mid, fmid, err
		}
		if s.accepted(fmid) {
			return mid, fmid, nil
		}

		if math.Signbit(fmid) == math.Signbit(flo) {
			lo, flo = mid, fmid
		} else {
			hi, fhi = mid, fmid
		}

		err = ev.report(Iter{
			A:     lo,
			B:     mid,
			C:     hi,
			FB:    fmid,
			Step:  0.5*hi - 0.5*lo,
			Kind:  Bisection,
			Width: hi - lo,
		})
		if err != nil {
			return mid, fmid, err
		}
	}
}
