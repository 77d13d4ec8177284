package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadValidManifest(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WARPINIT_CONFIG_DIR", dir)

	manifestPath := filepath.Join(dir, "warpinit.yaml")
	manifest := []byte(`version: "0.1"
worker:
  command: ["python", "gdal_warper.py"]
  configFile: /config/gdal_warper.yaml
  pathPrepend: ["/opt/conda/envs/warp/bin"]
  stopSignal: TERM
api:
  enabled: true
  addr: 127.0.0.1:9999
sampling:
  interval: 30s
`)
	if err := os.WriteFile(manifestPath, manifest, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	doc, err := Load(manifestPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got, want := strings.Join(doc.Worker.Command, " "), "python gdal_warper.py"; got != want {
		t.Fatalf("unexpected command: got %q want %q", got, want)
	}
	if got, want := doc.Worker.EnvFile, filepath.Join(dir, "env-variables"); got != want {
		t.Fatalf("default env file not applied: got %q want %q", got, want)
	}
	if got, want := doc.Worker.StopSignal, "TERM"; got != want {
		t.Fatalf("unexpected stop signal: got %q want %q", got, want)
	}
	if !doc.API.Enabled || doc.API.Addr != "127.0.0.1:9999" {
		t.Fatalf("unexpected api spec: %+v", doc.API)
	}
	if got, want := doc.Sampling.Interval.Duration, 30*time.Second; got != want {
		t.Fatalf("unexpected sampling interval: got %v want %v", got, want)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "warpinit.yaml")
	if err := os.WriteFile(manifestPath, []byte("restartPolicy: always\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	if _, err := Load(manifestPath); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoadOrDefaultWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WARPINIT_CONFIG_DIR", dir)

	doc, err := LoadOrDefault(filepath.Join(dir, "warpinit.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault returned error: %v", err)
	}
	if got, want := strings.Join(doc.Worker.Command, " "), "gdal_warper.py"; got != want {
		t.Fatalf("unexpected default command: got %q want %q", got, want)
	}
	if got, want := doc.Worker.ConfigFile, filepath.Join(dir, "gdal_warper.yaml"); got != want {
		t.Fatalf("unexpected default config file: got %q want %q", got, want)
	}
	if got, want := doc.Worker.StopSignal, "SIGTERM"; got != want {
		t.Fatalf("unexpected default stop signal: got %q want %q", got, want)
	}
}

func TestLoadOrDefaultSurfacesParseErrors(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "warpinit.yaml")
	if err := os.WriteFile(manifestPath, []byte(":\tnot yaml"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	if _, err := LoadOrDefault(manifestPath); err == nil {
		t.Fatalf("expected parse error to surface")
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("EXPANDED_SECRET", "alpha")

	cases := []struct {
		name    string
		content string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "empty file",
			content: "",
			want:    map[string]string{},
		},
		{
			name:    "basic pairs",
			content: "FOO=bar\nBAZ=qux\n",
			want:    map[string]string{"FOO": "bar", "BAZ": "qux"},
		},
		{
			name:    "comments and blanks",
			content: "# leading comment\n\nFOO=bar # trailing comment\n",
			want:    map[string]string{"FOO": "bar"},
		},
		{
			name:    "export prefix",
			content: "export FOO=bar\n",
			want:    map[string]string{"FOO": "bar"},
		},
		{
			name:    "double quoted",
			content: `FOO="a b#c"` + "\n",
			want:    map[string]string{"FOO": "a b#c"},
		},
		{
			name:    "single quoted",
			content: "FOO='a b'\n",
			want:    map[string]string{"FOO": "a b"},
		},
		{
			name:    "expansion",
			content: "TOKEN=${EXPANDED_SECRET}\n",
			want:    map[string]string{"TOKEN": "alpha"},
		},
		{
			name:    "missing separator",
			content: "FOO\n",
			wantErr: true,
		},
		{
			name:    "empty key",
			content: "=bar\n",
			wantErr: true,
		},
		{
			name:    "unmatched quote",
			content: `FOO="bar` + "\n",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "env-variables")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write env file: %v", err)
			}

			values, err := LoadEnvFile(path)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got values %v", values)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadEnvFile returned error: %v", err)
			}
			if len(values) != len(tc.want) {
				t.Fatalf("unexpected values: got %v want %v", values, tc.want)
			}
			for k, v := range tc.want {
				if values[k] != v {
					t.Fatalf("value for %s: got %q want %q", k, values[k], v)
				}
			}
		})
	}
}

func TestLoadEnvFileMissingIsError(t *testing.T) {
	if _, err := LoadEnvFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestBuildEnviron(t *testing.T) {
	base := []string{"HOME=/root", "PATH=/usr/bin:/bin", "FOO=old"}

	env := BuildEnviron(base, map[string]string{"FOO": "new", "EXTRA": "1"}, []string{"/opt/warp/bin"})

	if got := lookupEnv(env, "FOO"); got != "new" {
		t.Fatalf("override not applied: FOO=%q", got)
	}
	if got := lookupEnv(env, "EXTRA"); got != "1" {
		t.Fatalf("new key not appended: EXTRA=%q", got)
	}
	wantPath := "/opt/warp/bin" + string(os.PathListSeparator) + "/usr/bin:/bin"
	if got := lookupEnv(env, "PATH"); got != wantPath {
		t.Fatalf("path prepend: got %q want %q", got, wantPath)
	}
	if got := lookupEnv(base, "FOO"); got != "old" {
		t.Fatalf("base slice mutated: FOO=%q", got)
	}
}

func TestBuildEnvironWithoutBasePath(t *testing.T) {
	env := BuildEnviron(nil, nil, []string{"/opt/warp/bin"})
	if got := lookupEnv(env, "PATH"); got != "/opt/warp/bin" {
		t.Fatalf("path: got %q want %q", got, "/opt/warp/bin")
	}
}
