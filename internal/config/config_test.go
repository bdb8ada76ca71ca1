package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyReloadSwapsTunables(t *testing.T) {
	cfg := &Config{
		Sla:   SlaConfig{PremiumHours: 24, DefaultHours: 48},
		Plans: PlansConfig{FreeLimit: 2, StandardLimit: 20, PremiumLimit: 50},
	}

	// Readers run while the reload lands; the accessors must hand back a
	// whole block, never a torn mix of old and new values.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				sla := cfg.SlaSettings()
				if sla.DefaultHours == 48 {
					assert.Equal(t, 24, sla.PremiumHours)
				} else {
					assert.Equal(t, 12, sla.PremiumHours)
				}
				_ = cfg.PlanSettings()
			}
		}()
	}

	cfg.ApplyReload(&Config{
		Sla:   SlaConfig{PremiumHours: 12, DefaultHours: 36},
		Plans: PlansConfig{FreeLimit: 5, StandardLimit: 20, PremiumLimit: 50},
	})
	close(stop)
	wg.Wait()

	assert.Equal(t, 12, cfg.SlaSettings().PremiumHours)
	assert.Equal(t, 36, cfg.SlaSettings().DefaultHours)
	assert.Equal(t, 5, cfg.PlanSettings().FreeLimit)
}

func TestApplyReloadLeavesStartupBlocksAlone(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: "8080", Mode: "release"},
		JWT:    JWTConfig{Secret: "keep-me"},
		Sla:    SlaConfig{DefaultHours: 48},
	}

	cfg.ApplyReload(&Config{Sla: SlaConfig{DefaultHours: 36}})

	assert.Equal(t, 36, cfg.SlaSettings().DefaultHours)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "keep-me", cfg.JWT.Secret)
}
