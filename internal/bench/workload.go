package bench

import (
	"time"
)

func fibonacci(n int) int {
	if n <= 1 {
		return n
	}
	return fibonacci(n-1) + fibonacci(n-2)
}

func simulateIO(d time.Duration) {
	time.Sleep(d)
}

// memoryWork allocates size ints and sums them.
func memoryWork(size int) uint64 {
	data := make([]int, size)
	for i := range data {
		data[i] = i
	}

	var sum uint64
	for _, v := range data {
		sum += uint64(v)
	}
	return sum
}
