package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 8, cfg.Timetable.DefaultPeriodsPerDay)
	assert.Equal(t, LockBackendMemory, cfg.Timetable.LockBackend)
	assert.Equal(t, 5*time.Second, cfg.Timetable.WeekLockWait)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ProposalTTL)
	assert.Equal(t, 2, cfg.Scheduler.Workers)
}

func TestFromViperOverridesAndFallbacks(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("LOCK_BACKEND", "Redis")
	v.Set("DEFAULT_PERIODS_PER_DAY", 0)
	v.Set("WEEK_LOCK_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("LOCK_ON_PUBLISH", true)

	cfg := fromViper(v)
	assert.Equal(t, LockBackendRedis, cfg.Timetable.LockBackend)
	assert.Equal(t, 8, cfg.Timetable.DefaultPeriodsPerDay)
	assert.Equal(t, 30*time.Second, cfg.Timetable.WeekLockTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Timetable.LockOnPublish)
}
