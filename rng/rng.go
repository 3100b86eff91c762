// Package rng 提供跨语言可复现的确定性随机数（Mulberry32）。
// 服务端与客户端用同一种子各自生成世界，输出序列必须逐位一致，不能换成 math/rand。
package rng

// Rand 单个生成器，状态只有一个 32 位字；不可跨协程共享
type Rand struct {
	state uint32
}

// New 以种子创建生成器
func New(seed uint32) *Rand {
	return &Rand{state: seed}
}

// Next 返回 [0,1) 的浮点数
func (r *Rand) Next() float64 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return float64(t^t>>14) / 4294967296
}

// NextInt 返回 [min,max] 闭区间的整数
func (r *Rand) NextInt(min, max int) int {
	return min + int(r.Next()*float64(max-min+1))
}

// NextFloat 返回 [min,max) 的浮点数
func (r *Rand) NextFloat(min, max float64) float64 {
	return min + r.Next()*(max-min)
}

// Chance 以概率 p 返回 true
func (r *Rand) Chance(p float64) bool {
	return r.Next() < p
}

// Shuffle 原地打乱（Fisher–Yates，从末尾开始）
func Shuffle[T any](r *Rand, s []T) []T {
	for i := len(s) - 1; i > 0; i-- {
		j := int(r.Next() * float64(i+1))
		s[i], s[j] = s[j], s[i]
	}
	return s
}
