// Package config loads the small machine description this engine needs:
// which serial device to open, how many slots the mcu's move queue has,
// and the per-stepper tolerances and message tags. It follows the same
// two-function shape (LoadConfig + applyDefaults) the rest of this corpus
// uses for JSON configuration.
package config

import "encoding/json"

// StepperConfig describes one physical stepper's compression parameters.
type StepperConfig struct {
	OID               uint32 `json:"oid"`
	MaxError          uint32 `json:"max_error"`
	InvertSDir        bool   `json:"invert_sdir"`
	QueueStepCmd      string `json:"queue_step_cmd"`
	SetNextStepDirCmd string `json:"set_next_step_dir_cmd"`
}

// MachineConfig is the top-level machine description: one serial link to
// an MCU, its clock rate, the move queue depth the synchronizer must
// respect, and the steppers attached to it.
type MachineConfig struct {
	SerialDevice   string          `json:"serial_device"`
	MCUFreq        float64         `json:"mcu_freq"`
	MoveQueueDepth int             `json:"move_queue_depth"`
	Steppers       []StepperConfig `json:"steppers"`
}

// LoadConfig parses a JSON machine description and fills in defaults for
// anything left unset.
func LoadConfig(jsonData []byte) (*MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in missing configuration values with sensible
// defaults for a typical Klipper-class mcu.
func applyDefaults(cfg *MachineConfig) {
	if cfg.MCUFreq == 0 {
		cfg.MCUFreq = 20_000_000.0
	}
	if cfg.MoveQueueDepth == 0 {
		cfg.MoveQueueDepth = 64
	}
	for i, sc := range cfg.Steppers {
		if sc.MaxError == 0 {
			sc.MaxError = 25600
		}
		if sc.QueueStepCmd == "" {
			sc.QueueStepCmd = "queue_step"
		}
		if sc.SetNextStepDirCmd == "" {
			sc.SetNextStepDirCmd = "set_next_step_dir"
		}
		cfg.Steppers[i] = sc
	}
}
