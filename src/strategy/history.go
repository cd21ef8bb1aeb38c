package strategy

import "time"

// rollingSeries 按K线开盘时间记录的指标历史，同一根K线重复计算时覆盖最后一个值
type rollingSeries struct {
	values []float64
	last   time.Time
	limit  int
}

func newRollingSeries(limit int) *rollingSeries {
	return &rollingSeries{limit: limit}
}

func (r *rollingSeries) push(at time.Time, v float64) {
	if len(r.values) > 0 && at.Equal(r.last) {
		r.values[len(r.values)-1] = v
		return
	}
	r.values = append(r.values, v)
	r.last = at
	if len(r.values) > r.limit {
		r.values = r.values[len(r.values)-r.limit:]
	}
}

func (r *rollingSeries) len() int { return len(r.values) }

// at 负数下标从末尾取，-1为最新
func (r *rollingSeries) at(i int) float64 {
	if i < 0 {
		i += len(r.values)
	}
	return r.values[i]
}

func (r *rollingSeries) tail(n int) []float64 {
	if n > len(r.values) {
		n = len(r.values)
	}
	return r.values[len(r.values)-n:]
}
