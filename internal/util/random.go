package util

import "math/rand/v2"

// Rand 可注入的随机源，*rand.Rand 满足该接口，测试中可替换为固定值
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DefaultRand 基于 math/rand/v2 全局源，并发安全
var DefaultRand Rand = globalRand{}
