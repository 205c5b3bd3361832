package metaalloc

import (
	"math/rand/v2"
	"testing"
)

func BenchmarkEngine_AllocRelease(b *testing.B) {
	e := newTestEngine(b, 1<<24, Config{})
	b.ReportAllocs()
	for b.Loop() {
		h, err := e.Allocate(256, 1)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := e.Release(h); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEngine_Fragmented(b *testing.B) {
	for _, cfg := range []SizeClassConfig{ConfigFine, ConfigBalanced, ConfigCoarse} {
		b.Run(cfg.Name, func(b *testing.B) {
			e := newTestEngine(b, 1<<24, Config{SizeClasses: &cfg})
			rng := rand.New(rand.NewPCG(1, 2))
			live := make([]Handle, 0, 4096)
			for range 4096 {
				h, err := e.Allocate(32+rng.IntN(1024), 1)
				if err != nil {
					b.Fatal(err)
				}
				live = append(live, h)
			}
			for i := 0; i < len(live); i += 2 {
				if _, err := e.Release(live[i]); err != nil {
					b.Fatal(err)
				}
			}

			b.ResetTimer()
			for b.Loop() {
				h, err := e.Allocate(32+rng.IntN(512), 1)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := e.Release(h); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
