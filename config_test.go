package gpix

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero bins", func(c *Config) { c.NumBins = 0 }},
		{"too many bins", func(c *Config) { c.NumBins = MaxNumBins + 1 }},
		{"zero workgroup", func(c *Config) { c.WorkgroupSize = 0 }},
		{"large workgroup", func(c *Config) { c.WorkgroupSize = MaxWorkgroupSize + 1 }},
		{"bad layout", func(c *Config) { c.Layout = Layout(7) }},
		{"negative timeout", func(c *Config) { c.MapTimeout = -time.Second }},
	}
	for _, tc := range tests {
		c := DefaultConfig()
		tc.mod(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestConfigControls(t *testing.T) {
	c := DefaultConfig()
	ctrls := c.Controls()
	if len(ctrls) != 3 {
		t.Fatalf("got %d controls", len(ctrls))
	}
	if err := ctrls[0].ChangeValue(16); err != nil {
		t.Fatal(err)
	}
	if c.NumBins != 16 || ctrls[0].ActualValue() != 16 {
		t.Errorf("bins control did not update config: %d", c.NumBins)
	}
	if err := ctrls[1].ChangeValue(MaxWorkgroupSize * 2); err == nil {
		t.Error("expected out of range workgroup size to fail")
	}
	if c.WorkgroupSize != 64 {
		t.Errorf("rejected change modified config: %d", c.WorkgroupSize)
	}
	if err := ctrls[2].ChangeValue(LayoutFloat32); err != nil {
		t.Fatal(err)
	}
	if c.Layout != LayoutFloat32 {
		t.Errorf("layout = %s", c.Layout)
	}
	if err := ctrls[2].ChangeValue(Layout(9)); err == nil {
		t.Error("expected invalid layout to fail")
	}
	if err := ctrls[2].ChangeValue(2); err == nil {
		t.Error("expected untyped int to fail")
	}
	if name, _ := ctrls[2].Describe(); name != "Lane Layout" {
		t.Errorf("name = %q", name)
	}
}
