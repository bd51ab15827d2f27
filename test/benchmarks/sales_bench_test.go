package benchmarks

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/salesflow-be/internal/adapters/memory"
	"github.com/ammerola/salesflow-be/internal/core/domain"
)

func BenchmarkCreateSale(b *testing.B) {
	ctx := context.Background()

	for _, tc := range []struct {
		name  string
		lines int
	}{{"SingleLine", 1}, {"FiveLines", 5}, {"TwentyLines", 20}} {
		b.Run(tc.name, func(b *testing.B) {
			env, err := newBenchEnv(50, math.MaxInt32, 1)
			if err != nil {
				b.Fatal(err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := env.sales.CreateSale(ctx, env.basket(i, tc.lines)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCreateSaleParallel(b *testing.B) {
	ctx := context.Background()

	b.Run("Disjoint", func(b *testing.B) {
		env, err := newBenchEnv(256, math.MaxInt32, 1)
		if err != nil {
			b.Fatal(err)
		}
		var next atomic.Int64

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := env.sales.CreateSale(ctx, env.basket(int(next.Add(1)), 1)); err != nil {
					b.Error(err)
				}
			}
		})
	})

	b.Run("HotProduct", func(b *testing.B) {
		env, err := newBenchEnv(1, math.MaxInt32, 1)
		if err != nil {
			b.Fatal(err)
		}

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := env.sales.CreateSale(ctx, env.basket(0, 1)); err != nil {
					b.Error(err)
				}
			}
		})
	})
}

func BenchmarkReconcile(b *testing.B) {
	ctx := context.Background()

	for _, concurrency := range []int{1, 8} {
		name := "Sequential"
		if concurrency > 1 {
			name = "Concurrent"
		}
		b.Run(name, func(b *testing.B) {
			env, err := newBenchEnv(100, math.MaxInt32, concurrency)
			if err != nil {
				b.Fatal(err)
			}

			batch := &domain.BatchRequest{Actor: "bench", Sales: make([]domain.CreateSaleRequest, 100)}
			for i := range batch.Sales {
				batch.Sales[i] = *env.basket(i, 3)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := env.reconciler.Reconcile(ctx, batch); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkKeyedLocker(b *testing.B) {
	ctx := context.Background()
	locker := memory.NewKeyedLocker(time.Second)
	ids := []int64{3, 7, 11, 19}

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			release, err := locker.Acquire(ctx, ids)
			if err != nil {
				b.Error(err)
				return
			}
			release()
		}
	})
}

// Memory allocation benchmarks
func BenchmarkMemoryAllocation(b *testing.B) {
	product := &domain.Product{ID: 1, SKU: "BENCH-0001", Name: "Bench", Price: decimal.RequireFromString("3.49")}

	b.Run("SaleWithTenItems", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			sale := domain.NewSale(time.Time{}, domain.SourcePOS, "bench")
			for j := 0; j < 10; j++ {
				sale.AddItem(domain.NewSaleItem(product, j+1))
			}
			sale.RecalculateTotal()
		}
	})
}
