package networktables

import (
	"sync"
	"testing"

	"go.viam.com/test"
)

func TestMemTableDefaults(t *testing.T) {
	table := NewMemTable("limelight")
	test.That(t, table.Number("tx", 0), test.ShouldEqual, 0.0)
	test.That(t, table.Bool("connected", false), test.ShouldBeFalse)
	test.That(t, table.String("tclass", "none"), test.ShouldEqual, "none")
	test.That(t, table.NumberArray("camtran"), test.ShouldBeNil)
	test.That(t, table.Has("tx"), test.ShouldBeFalse)
}

func TestMemTableConversions(t *testing.T) {
	table := NewMemTable("Coral")
	table.Put("tv", 1)
	table.Put("connected", true)
	table.Put("num_detections", "3")
	table.Put("labels", []string{"algae", "coral"})
	table.Put("widths", []float32{0.25, 0.5})
	table.Put("bogus", []interface{}{0.1, "x"})

	test.That(t, table.Number("tv", 0), test.ShouldEqual, 1.0)
	test.That(t, table.Bool("tv", false), test.ShouldBeTrue)
	test.That(t, table.Number("connected", 0), test.ShouldEqual, 1.0)
	test.That(t, table.Number("num_detections", 0), test.ShouldEqual, 3.0)
	test.That(t, table.StringArray("labels"), test.ShouldResemble, []string{"algae", "coral"})
	test.That(t, table.NumberArray("widths"), test.ShouldResemble, []float64{0.25, 0.5})
	test.That(t, table.NumberArray("bogus"), test.ShouldBeNil)
	test.That(t, table.String("labels", "def"), test.ShouldEqual, "def")
	test.That(t, table.Keys(), test.ShouldResemble,
		[]string{"bogus", "connected", "labels", "num_detections", "tv", "widths"})

	table.Delete("tv")
	test.That(t, table.Has("tv"), test.ShouldBeFalse)
}

func TestMemTableBoolFromNumbers(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{"float64 one", 1.0, true},
		{"float64 zero", 0.0, false},
		{"int", 1, true},
		{"int64", int64(1), true},
		{"int64 zero", int64(0), false},
		{"float32", float32(0.5), true},
		{"bool", true, true},
		{"string", "true", true},
		{"bad string keeps default", "maybe", true},
		{"slice keeps default", []float64{1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			table := NewMemTable("Coral")
			table.Put("connected", tc.value)
			test.That(t, table.Bool("connected", true), test.ShouldEqual, tc.want)
		})
	}

	table := NewMemTable("Coral")
	table.Put("connected", 1.0)
	test.That(t, table.Bool("connected", false), test.ShouldBeTrue)
	table.Put("connected", "maybe")
	test.That(t, table.Bool("connected", false), test.ShouldBeFalse)
}

func TestMemTableCopiesSlices(t *testing.T) {
	table := NewMemTable("Coral")
	xs := []float64{0.1, 0.2}
	table.Put("x_positions", xs)
	xs[0] = 0.9

	read := table.NumberArray("x_positions")
	test.That(t, read, test.ShouldResemble, []float64{0.1, 0.2})
	read[1] = 0.7
	test.That(t, table.NumberArray("x_positions"), test.ShouldResemble, []float64{0.1, 0.2})
}

func TestInstanceConcurrentAccess(t *testing.T) {
	inst := NewInstance()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table := inst.Table("Coral")
			table.Put("timestamp", i)
			table.Number("timestamp", 0)
		}(i)
	}
	wg.Wait()
	test.That(t, inst.TableNames(), test.ShouldResemble, []string{"Coral"})
	test.That(t, inst.Table("Coral"), test.ShouldEqual, inst.Table("Coral"))
}
