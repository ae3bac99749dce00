package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// OnboardingState is the persisted first-run flag.
type OnboardingState struct {
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// onboardingStore persists the onboarding flag as a JSON file. Writes
// go through a temp file and rename so a crash never leaves a torn
// file behind.
type onboardingStore struct {
	mu   sync.Mutex
	path string
}

func newOnboardingStore(path string) *onboardingStore {
	return &onboardingStore{path: path}
}

// Load reads the persisted state. A missing file is a fresh install,
// not an error.
func (o *onboardingStore) Load() (OnboardingState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := os.ReadFile(o.path)
	if err != nil {
		if os.IsNotExist(err) {
			return OnboardingState{}, nil
		}
		return OnboardingState{}, fmt.Errorf("read onboarding state: %w", err)
	}

	var state OnboardingState
	if err := json.Unmarshal(data, &state); err != nil {
		return OnboardingState{}, fmt.Errorf("parse onboarding state: %w", err)
	}
	return state, nil
}

// Save persists the state atomically.
func (o *onboardingStore) Save(state OnboardingState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if state.Completed && state.CompletedAt.IsZero() {
		state.CompletedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode onboarding state: %w", err)
	}

	if dir := filepath.Dir(o.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tempPath := o.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write onboarding state: %w", err)
	}
	if err := os.Rename(tempPath, o.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename onboarding state: %w", err)
	}
	return nil
}
