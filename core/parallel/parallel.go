// Package parallel は独立した範囲処理を CPU コア数に応じて分割実行する。
package parallel

import (
	"runtime"
	"sync"
)

// For は [0, n) を連続した範囲に分け、fn(start, end) を並列に実行する。
// n が minPerWorker 未満のときは呼び出し元の goroutine で一度だけ実行する。
// fn は範囲ごとに書き込み先が重ならないことを前提とする。
func For(n, minPerWorker int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if minPerWorker < 1 {
		minPerWorker = 1
	}

	workers := runtime.GOMAXPROCS(0)
	if limit := n / minPerWorker; workers > limit {
		workers = limit
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	size := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
