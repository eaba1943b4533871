package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	_ "github.com/frc-reefscape/reefbot/components/base/fake"
	"github.com/frc-reefscape/reefbot/components/motor"
	_ "github.com/frc-reefscape/reefbot/components/motor/fake"
	"github.com/frc-reefscape/reefbot/config"
	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/services/vision/hybrid"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.FromReader(strings.NewReader(`{}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Period(), test.ShouldEqual, 20*time.Millisecond)
	test.That(t, cfg.Drive, test.ShouldEqual, "drive")
	test.That(t, cfg.Autonomous, test.ShouldEqual, "none")
	test.That(t, cfg.Components, test.ShouldHaveLength, 4)
	test.That(t, cfg.Vision.Mode, test.ShouldEqual, hybrid.Fusion)
	test.That(t, cfg.Vision.TargetLabel, test.ShouldEqual, "algae")
	test.That(t, cfg.Vision.Primary.Table, test.ShouldEqual, "limelight")
	test.That(t, cfg.Vision.Secondary.Table, test.ShouldEqual, "Coral")
	test.That(t, cfg.Tracking.Kp, test.ShouldEqual, 0.04)
	test.That(t, cfg.Pickup.ArmTimeout, test.ShouldEqual, 3*time.Second)
	test.That(t, cfg.Roller.BaselineCurrent, test.ShouldEqual, 20.0)
	test.That(t, cfg.Arm.Motor, test.ShouldEqual, "arm")
	test.That(t, cfg.Components[1].ImplicitDependsOn, test.ShouldBeEmpty)

	empty, err := config.FromReader(strings.NewReader(``))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty.Components, test.ShouldHaveLength, 4)
}

func TestRead(t *testing.T) {
	t.Setenv("REEF_LABEL", "coral")
	path := filepath.Join(t.TempDir(), "robot.json")
	test.That(t, os.WriteFile(path, []byte(`{
		"period_ms": 10,
		"components": [
			{"name": "base", "api": "component:base", "model": "fake"},
			{"name": "shoulder", "api": "motor", "model": "fake", "attributes": {"max_rpm": 100}},
			{"name": "intake", "api": "motor", "model": "fake"},
			{"name": "winch", "api": "motor", "model": "fake"}
		],
		"drive": "base",
		"telemetry_table": "${REEF_UNSET_TABLE:-Dashboard}",
		"vision": {"mode": "Primary_Only", "target_label": "${REEF_LABEL}"},
		"arm": {"motor": "shoulder", "kp": 0.2},
		"roller": {"motor": "intake", "drop_threshold_amps": "4.5"},
		"climber": {"motor": "winch"},
		"pickup": {"arm_timeout": "1.5s"}
	}`), 0o600), test.ShouldBeNil)

	cfg, err := config.Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.Period(), test.ShouldEqual, 10*time.Millisecond)
	test.That(t, cfg.Vision.Mode, test.ShouldEqual, hybrid.PrimaryOnly)
	test.That(t, cfg.Vision.TargetLabel, test.ShouldEqual, "coral")
	test.That(t, cfg.TelemetryTable, test.ShouldEqual, "Dashboard")
	test.That(t, cfg.Arm.Kp, test.ShouldEqual, 0.2)
	test.That(t, cfg.Arm.MaxSpeed, test.ShouldEqual, 0.3)
	test.That(t, cfg.Roller.DropThreshold, test.ShouldEqual, 4.5)
	test.That(t, cfg.Pickup.ArmTimeout, test.ShouldEqual, 1500*time.Millisecond)
	test.That(t, cfg.Pickup.StowTimeout, test.ShouldEqual, 3*time.Second)
	test.That(t, cfg.Components, test.ShouldHaveLength, 4)
	test.That(t, cfg.Components[1].API, test.ShouldResemble, motor.API)
	test.That(t, cfg.Components[1].ConvertedAttributes, test.ShouldNotBeNil)

	_, err = config.Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot read config")
}

func TestValidateErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		json string
		err  string
	}{
		{"bad json", `{"period_ms":`, "cannot parse config"},
		{"unknown mode", `{"vision": {"mode": "sideways"}}`, "sideways"},
		{"negative period", `{"period_ms": -5}`, "period_ms"},
		{
			"missing motor component",
			`{"components": [{"name": "drive", "api": "base", "model": "fake"}]}`,
			"arm.motor",
		},
		{
			"duplicate component",
			`{"components": [
				{"name": "drive", "api": "base", "model": "fake"},
				{"name": "drive", "api": "base", "model": "fake"}
			]}`,
			"duplicate",
		},
		{
			"unregistered model",
			`{"components": [{"name": "drive", "api": "base", "model": "sparkmax"}]}`,
			"no registered model",
		},
		{"bad attributes", `{"components": [{"name": "arm", "api": "motor", "model": "fake", "attributes": {"max_rpm": -1}}]}`, "max_rpm"},
		{"confidence out of range", `{"vision": {"secondary": {"confidence_threshold": 2}}}`, "confidence_threshold"},
		{"arm speed out of range", `{"arm": {"max_speed": 3}}`, "max_speed"},
		{"negative timeout", `{"pickup": {"stow_timeout": "-1s"}}`, "stow_timeout"},
		{"bad log pattern", `{"log": [{"pattern": "robot..vision", "level": "debug"}]}`, "log.0"},
		{"bad log level", `{"log": [{"pattern": "*", "level": "loud"}]}`, "loud"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.FromReader(strings.NewReader(tc.json))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestSchema(t *testing.T) {
	schema := config.Schema()
	test.That(t, schema, test.ShouldNotBeNil)
	out, err := schema.MarshalJSON()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldContainSubstring, "drive_to_piece")
	test.That(t, string(out), test.ShouldContainSubstring, "spike_threshold_amps")

	models := config.ModelSchemas()
	test.That(t, models, test.ShouldContainKey, "component:motor/fake")
	test.That(t, models, test.ShouldContainKey, "component:base/fake")
}

func TestWatcher(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	path := filepath.Join(t.TempDir(), "robot.json")
	test.That(t, os.WriteFile(path, []byte(`{}`), 0o600), test.ShouldBeNil)

	w, err := config.NewWatcher(ctx, path, 10*time.Millisecond, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
	}()

	test.That(t, os.WriteFile(path, []byte(`{"vision": {"mode": "nope"}}`), 0o600), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessage("ignoring invalid config").Len(), test.ShouldBeGreaterThan, 0)
	})
	select {
	case <-w.Config():
		t.Fatal("invalid config should not be delivered")
	default:
	}

	test.That(t, os.WriteFile(path, []byte(`{"vision": {"mode": "secondary_only"}}`), 0o600), test.ShouldBeNil)
	select {
	case cfg := <-w.Config():
		test.That(t, cfg.Vision.Mode, test.ShouldEqual, hybrid.SecondaryOnly)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config")
	}
}
