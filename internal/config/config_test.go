package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gostdlib/racefree"
	"github.com/kylelemons/godebug/pretty"
	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	got, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("TestLoadDefaults: got err == %s", err)
	}
	if diff := pretty.Compare(Default(), got); diff != "" {
		t.Errorf("TestLoadDefaults: -want/+got:\n%s", diff)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "racedetective.yaml")
	content := []byte("workers: 3\niterations: 50\npool: limited\nflush-interval: 25ms\n")
	if err := os.WriteFile(file, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RACEDETECTIVE_WORKERS", "7")
	t.Setenv("RACEDETECTIVE_FORMAT", "json")

	v := viper.New()
	// A flag that was set on the command line acts as an override.
	v.Set(KeyIterations, 99)

	got, err := Load(v, file)
	if err != nil {
		t.Fatalf("TestLoadPrecedence: got err == %s", err)
	}

	want := Config{
		Workers:       7,                     // env beats file
		Iterations:    99,                    // flag beats file
		Pool:          PoolLimited,           // file beats default
		FlushInterval: 25 * time.Millisecond, // file beats default
		Format:        FormatJSON,            // env beats default
	}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("TestLoadPrecedence: -want/+got:\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("TestLoadMissingFile: want err != nil, got err == nil")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc   string
		modify func(c *Config)
		err    bool
	}{
		{desc: "defaults", modify: func(c *Config) {}},
		{desc: "limited pool", modify: func(c *Config) { c.Pool = PoolLimited }},
		{desc: "zero workers", modify: func(c *Config) { c.Workers = 0 }, err: true},
		{desc: "zero iterations", modify: func(c *Config) { c.Iterations = 0 }, err: true},
		{desc: "bad pool", modify: func(c *Config) { c.Pool = "tunny" }, err: true},
		{desc: "zero flush interval", modify: func(c *Config) { c.FlushInterval = 0 }, err: true},
		{desc: "bad format", modify: func(c *Config) { c.Format = "xml" }, err: true},
	}

	for _, test := range tests {
		c := Default()
		test.modify(&c)

		err := c.Validate()
		switch {
		case err == nil && test.err:
			t.Errorf("TestValidate(%s): want err != nil, got err == nil", test.desc)
		case err != nil && !test.err:
			t.Errorf("TestValidate(%s): got err == %s, want err == nil", test.desc, err)
		case err != nil && !racefree.IsInvalidArgument(err):
			t.Errorf("TestValidate(%s): got err == %s, want InvalidArgument", test.desc, err)
		}
	}
}
