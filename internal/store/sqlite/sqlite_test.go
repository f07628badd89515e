package sqlite

import (
	"testing"

	"github.com/prepshare/prepshare-go/internal/store"
	"github.com/prepshare/prepshare-go/internal/store/testutil"
)

func TestSQLiteDriver(t *testing.T) {
	testutil.RunDriverTests(t, "sqlite", &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	})
}

func TestSQLiteRequiresDataDir(t *testing.T) {
	if _, err := NewDriver(&store.DriverConfig{Driver: "sqlite"}); err == nil {
		t.Fatal("expected error for missing data_dir")
	}
}

func TestSQLiteOptionDefaults(t *testing.T) {
	d, err := NewDriver(&store.DriverConfig{Driver: "sqlite", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	drv := d.(*Driver)
	if drv.opts.Filename != "prepshare.db" {
		t.Errorf("default filename = %q, want prepshare.db", drv.opts.Filename)
	}
	if drv.opts.BusyTimeoutMS != 5000 {
		t.Errorf("default busy timeout = %d, want 5000", drv.opts.BusyTimeoutMS)
	}
}

func TestSQLiteOptionOverrides(t *testing.T) {
	d, err := NewDriver(&store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
		Options: map[string]any{
			"filename":        "custom.db",
			"busy_timeout_ms": 250,
		},
	})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	drv := d.(*Driver)
	if drv.opts.Filename != "custom.db" {
		t.Errorf("filename = %q, want custom.db", drv.opts.Filename)
	}
	if drv.opts.BusyTimeoutMS != 250 {
		t.Errorf("busy timeout = %d, want 250", drv.opts.BusyTimeoutMS)
	}
}
