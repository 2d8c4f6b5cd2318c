package config

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Feature flag errors.
var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// Feature flag names used throughout the application.
const (
	// Leaderboard features
	FeatureLeaderboardCache    = "leaderboard.cache"
	FeatureLeaderboardLiveRank = "leaderboard.live_rank"

	// Notification features
	FeatureNotifyTaskUnlocked    = "notify.task_unlocked"
	FeatureNotifyReviewResult    = "notify.review_result"
	FeatureNotifyCertificate     = "notify.certificate"
	FeatureNotifyDeliveryOverdue = "notify.delivery_overdue"
	FeatureNotifyQuietHours      = "notify.quiet_hours"

	// Certificate workflow features
	FeatureCertificateWorkflow = "certificate.workflow"
	FeaturePremiumGate         = "certificate.premium_gate"

	// Experimental features
	FeatureAutoFinalize    = "experimental.auto_finalize"
	FeatureScoreProjection = "experimental.score_projection"
)

// Feature represents a single feature flag with rollout configuration.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent controls gradual rollout (0-100).
	// 0 = disabled for all, 100 = enabled for all (if Enabled is true)
	RolloutPercent int

	// TargetCohorts limits the feature to specific program cohorts
	TargetCohorts []string

	// Schedule-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature evaluation.
type FeatureContext struct {
	InternID string
	Cohort   string
	IsAdmin  bool
}

// FeatureFlags manages all feature flags for the application.
type FeatureFlags struct {
	mu              sync.RWMutex
	features        map[string]*Feature
	internOverrides map[string]map[string]bool
}

// LoadFeatureFlags creates feature flags from environment and defaults.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		internOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	defaults := []*Feature{
		{
			Name:           FeatureLeaderboardCache,
			Description:    "Serve program leaderboards from the Redis cache",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureLeaderboardLiveRank,
			Description:    "Recompute an intern's rank on every score query",
			Enabled:        false,
			RolloutPercent: 0,
		},
		{
			Name:           FeatureNotifyTaskUnlocked,
			Description:    "Notify interns when a gated task unlocks",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureNotifyReviewResult,
			Description:    "Notify interns about submission review outcomes",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureNotifyCertificate,
			Description:    "Notify interns about certificate workflow progress",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureNotifyDeliveryOverdue,
			Description:    "Remind administrators about overdue certificate deliveries",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureNotifyQuietHours,
			Description:    "Suppress non-urgent notifications outside 9:00-22:00 Almaty",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureCertificateWorkflow,
			Description:    "Enable the paid certificate workflow endpoints",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeaturePremiumGate,
			Description:    "Gate premium task access behind certificate validation",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureAutoFinalize,
			Description:    "Finalize enrollments automatically when the last task is reviewed",
			Enabled:        false,
			RolloutPercent: 0,
		},
		{
			Name:           FeatureScoreProjection,
			Description:    "Show projected final score on the score breakdown",
			Enabled:        false,
			RolloutPercent: 0,
		},
	}

	for _, f := range defaults {
		ff.features[f.Name] = f
	}
}

// loadFromEnvironment applies FEATURE_* overrides. The value may be a
// boolean ("true"/"false") or a rollout percent ("25").
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b && feature.RolloutPercent == 0 {
				feature.RolloutPercent = 100
			}
			continue
		}

		if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
			feature.Enabled = pct > 0
			feature.RolloutPercent = pct
		}
	}
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(name string, fctx FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Per-intern override wins over everything
	if overrides, ok := ff.internOverrides[fctx.InternID]; ok {
		if enabled, ok := overrides[name]; ok {
			return enabled
		}
	}

	feature, ok := ff.features[name]
	if !ok {
		return false
	}

	if !feature.Enabled {
		return false
	}

	// Admins see every enabled feature regardless of rollout
	if fctx.IsAdmin {
		return true
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if len(feature.TargetCohorts) > 0 {
		found := false
		for _, c := range feature.TargetCohorts {
			if c == fctx.Cohort {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if feature.RolloutPercent >= 100 {
		return true
	}
	if feature.RolloutPercent <= 0 {
		return false
	}

	return ff.inRollout(name, fctx.InternID, feature.RolloutPercent)
}

// inRollout deterministically buckets an intern into the rollout. The
// same intern always lands in the same bucket for a given feature.
func (ff *FeatureFlags) inRollout(name, internID string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(":"))
	h.Write([]byte(internID))
	return int(h.Sum32()%100) < percent
}

// SetInternOverride forces a feature on or off for a specific intern.
func (ff *FeatureFlags) SetInternOverride(internID, name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.internOverrides[internID] == nil {
		ff.internOverrides[internID] = make(map[string]bool)
	}
	ff.internOverrides[internID][name] = enabled
}

// ClearInternOverrides removes all overrides for an intern.
func (ff *FeatureFlags) ClearInternOverrides(internID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	delete(ff.internOverrides, internID)
}

// SetRolloutPercent updates the rollout percentage of a feature.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature turns a feature fully on.
func (ff *FeatureFlags) EnableFeature(name string) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
	}

	feature.Enabled = true
	feature.RolloutPercent = 100
	return nil
}

// DisableFeature turns a feature fully off.
func (ff *FeatureFlags) DisableFeature(name string) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
	}

	feature.Enabled = false
	return nil
}

// GetAllFeatures returns a snapshot of all registered features.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		result = append(result, *f)
	}
	return result
}

// --- Convenience methods for commonly checked features ---

// LeaderboardCacheEnabled reports whether leaderboards may be served
// from the cache.
func (ff *FeatureFlags) LeaderboardCacheEnabled() bool {
	return ff.IsEnabled(FeatureLeaderboardCache, FeatureContext{})
}

// QuietHoursEnabled reports whether quiet-hours suppression applies.
func (ff *FeatureFlags) QuietHoursEnabled() bool {
	return ff.IsEnabled(FeatureNotifyQuietHours, FeatureContext{})
}

// CertificateWorkflowEnabled reports whether the certificate endpoints
// are active.
func (ff *FeatureFlags) CertificateWorkflowEnabled() bool {
	return ff.IsEnabled(FeatureCertificateWorkflow, FeatureContext{})
}
