package util

import "math"

// Lerp realiza interpolação linear entre dois floats.
func Lerp(start, end, amount float64) float64 {
	return start + amount*(end-start)
}

// DistSq retorna a distância quadrada entre dois vetores 3D.
func DistSq(v1, v2 Vec3) float64 {
	dx := v1[0] - v2[0]
	dy := v1[1] - v2[1]
	dz := v1[2] - v2[2]
	return dx*dx + dy*dy + dz*dz
}

// Clamp limita v ao intervalo [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// RoundToInt arredonda para o inteiro mais próximo (meio para cima).
func RoundToInt(v float64) int {
	return int(math.Floor(v + 0.5))
}
