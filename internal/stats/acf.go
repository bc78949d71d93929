package stats

// ACF calculates the autocorrelation function for lags 0 to maxLag.
// Returns nil for a constant series.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := Mean(values)
	denom := 0.0
	for _, v := range values {
		d := v - mean
		denom += d * d
	}
	if denom == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (values[i] - mean) * (values[i-k] - mean)
		}
		acf[k] = sum / denom
	}
	return acf
}

// PACF calculates the partial autocorrelation function for lags 0 to maxLag
// using the Durbin-Levinson recursion. PACF[0] is 1.
func PACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 1 {
		return nil
	}

	acf := ACF(values, maxLag)
	if acf == nil {
		return nil
	}

	pacf := make([]float64, maxLag+1)
	pacf[0] = 1
	pacf[1] = acf[1]

	phi := []float64{acf[1]}
	for k := 2; k <= maxLag; k++ {
		num := acf[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= phi[j-1] * acf[k-j]
			den -= phi[j-1] * acf[j]
		}
		if den == 0 {
			break
		}
		phiKK := num / den

		next := make([]float64, k)
		for j := 1; j < k; j++ {
			next[j-1] = phi[j-1] - phiKK*phi[k-j-1]
		}
		next[k-1] = phiKK
		phi = next
		pacf[k] = phiKK
	}
	return pacf
}

// YuleWalker estimates AR(order) coefficients from autocorrelations with the
// Levinson-Durbin recursion. acf must hold at least order+1 lags.
func YuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := []float64{acf[1]}
	v := 1 - acf[1]*acf[1]

	for k := 2; k <= order; k++ {
		if v <= 0 {
			break
		}
		lambda := acf[k]
		for j := 1; j < k; j++ {
			lambda -= phi[j-1] * acf[k-j]
		}
		lambda /= v

		next := make([]float64, k)
		for j := 1; j < k; j++ {
			next[j-1] = phi[j-1] - lambda*phi[k-j-1]
		}
		next[k-1] = lambda
		phi = next
		v *= 1 - lambda*lambda
	}

	out := make([]float64, order)
	copy(out, phi)
	return out
}
