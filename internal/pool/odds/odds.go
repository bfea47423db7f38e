package odds

// Odds em ponto fixo ×1000 (1500 == 1.5x). Lado sem aposta paga 1.0x.
const Scale = 1000

// Calculate devolve a odd de um lado: floor(pool * 1000 / side).
// side == 0 colapsa para 1000, nunca divide por zero.
func Calculate(pool, side int64) int64 {
	if side == 0 {
		return Scale
	}
	return pool * Scale / side
}

// ForMatch calcula as odds dos dois lados a partir dos totais acumulados.
func ForMatch(totalA, totalB int64) (oddsA, oddsB int64) {
	pool := totalA + totalB
	return Calculate(pool, totalA), Calculate(pool, totalB)
}

// Distribution devolve a fatia percentual de cada lado do pool.
// Pool vazio reporta 50/50.
func Distribution(totalA, totalB int64) (pctA, pctB int64) {
	pool := totalA + totalB
	if pool == 0 {
		return 50, 50
	}
	pctA = totalA * 100 / pool
	return pctA, 100 - pctA
}
