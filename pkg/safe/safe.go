// Package safe provides int64 arithmetic that panics instead of wrapping.
package safe

import (
	"fmt"
	"math"
)

// SafeAdd returns a+b. Panics on overflow.
func SafeAdd(a, b int64) int64 {
	c := a + b
	if (c > a) != (b > 0) {
		panic(fmt.Sprintf("SAFE_ADD_OVERFLOW: %d + %d", a, b))
	}
	return c
}

// SafeSub returns a-b. Panics on overflow.
func SafeSub(a, b int64) int64 {
	c := a - b
	if (c < a) != (b > 0) {
		panic(fmt.Sprintf("SAFE_SUB_OVERFLOW: %d - %d", a, b))
	}
	return c
}

// SafeMul returns a*b. Panics on overflow.
func SafeMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		panic(fmt.Sprintf("SAFE_MUL_OVERFLOW: %d * %d", a, b))
	}
	c := a * b
	if c/b != a {
		panic(fmt.Sprintf("SAFE_MUL_OVERFLOW: %d * %d", a, b))
	}
	return c
}

// SafeDiv returns a/b. Panics on division by zero or overflow.
func SafeDiv(a, b int64) int64 {
	if b == 0 {
		panic(fmt.Sprintf("SAFE_DIV_BY_ZERO: %d / 0", a))
	}
	if a == math.MinInt64 && b == -1 {
		panic(fmt.Sprintf("SAFE_DIV_OVERFLOW: %d / -1", a))
	}
	return a / b
}
