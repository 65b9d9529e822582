package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/taskman/storage/jsonfile"
	"github.com/arthur-debert/taskman/taskman/storage/memory"
	"github.com/arthur-debert/taskman/types"
)

func TestParseConfigRejectsUnknownType(t *testing.T) {
	_, err := ParseConfig([]byte(`{"storage_type":"ftp"}`))
	if !types.IsKind(err, types.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}

	_, err = ParseConfig([]byte(`{"application_name":"x"}`))
	if !types.IsKind(err, types.ErrConfig) {
		t.Fatalf("expected config error for missing type, got %v", err)
	}

	_, err = ParseConfig([]byte(`not json`))
	if !types.IsKind(err, types.ErrConfig) {
		t.Fatalf("expected config error for bad json, got %v", err)
	}
}

func TestConfigDescriptor(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want Descriptor
	}{
		{
			name: "local",
			cfg:  Config{StorageType: KindLocal, Username: "Admin", ApplicationName: "Local"},
			want: Local{Username: "Admin", ApplicationName: "Local"},
		},
		{
			name: "dav",
			cfg:  Config{StorageType: KindDAV, URL: "http://localhost/", AuthType: "none", Username: "Admin"},
			want: DAV{URL: "http://localhost/", AuthType: "none", Username: "Admin"},
		},
		{
			name: "dropbox",
			cfg:  Config{StorageType: KindDropbox, AccessToken: "tok"},
			want: Dropbox{AccessToken: "tok"},
		},
		{
			name: "json description wins",
			cfg: Config{
				StorageType:     KindLocal,
				ApplicationName: "Local 2",
				JSONDescription: `{"type":"local","username":"Admin","application_name":"Local"}`,
			},
			want: Local{Username: "Admin", ApplicationName: "Local"},
		},
		{
			name: "replicate",
			cfg: Config{StorageType: KindReplicate, StorageList: []Config{
				{StorageType: KindMemory},
				{StorageType: KindSQLite, Path: "tasks.db"},
			}},
			want: Replicate{Storages: []Descriptor{Memory{}, SQLite{Path: "tasks.db"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Descriptor()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigDescriptorErrors(t *testing.T) {
	for _, cfg := range []Config{
		{StorageType: KindSQLite},
		{StorageType: KindPostgres},
		{StorageType: KindS3},
		{StorageType: KindReplicate},
		{StorageType: "ftp"},
		{StorageType: KindLocal, JSONDescription: `{"type":"ftp"}`},
	} {
		if _, err := cfg.Descriptor(); !types.IsKind(err, types.ErrConfig) {
			t.Errorf("%+v: expected config error, got %v", cfg, err)
		}
	}
}

func TestParseDescriptionUnwrapsQuery(t *testing.T) {
	d, err := ParseDescription([]byte(`{"type":"query","sub_storage":{"type":"dropbox","access_token":"abc"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Dropbox{AccessToken: "abc"}, d); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}

	d, err = ParseDescription([]byte(`{"type":"replicate","storage_list":[{"type":"memory"},{"type":"local","path":"a.json"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := Replicate{Storages: []Descriptor{Memory{}, Local{Path: "a.json"}}}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestFactoryOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewFactory(dir)

	b, err := f.Open(ctx, Local{Username: "Admin", ApplicationName: "Local"})
	if err != nil {
		t.Fatal(err)
	}
	js, ok := b.(*jsonfile.Store)
	if !ok {
		t.Fatalf("expected a JSON file store, got %T", b)
	}
	if want := filepath.Join(dir, "Admin", "Local.json"); js.Path() != want {
		t.Errorf("expected path %s, got %s", want, js.Path())
	}

	b, err = f.Open(ctx, SQLite{Path: "tasks.db"})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = b.Close() }()

	b, err = f.Open(ctx, Replicate{Storages: []Descriptor{Memory{}, Memory{}}})
	if err != nil {
		t.Fatal(err)
	}
	if rep, ok := b.(*storage.Replicate); !ok || len(rep.Subs()) != 2 {
		t.Errorf("expected a replicate storage with two subs, got %T", b)
	}
}

func TestFactoryExternalKinds(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(t.TempDir())

	if _, err := f.Open(ctx, DAV{URL: "http://localhost/"}); !types.IsKind(err, types.ErrConfig) {
		t.Fatalf("expected config error without an adapter, got %v", err)
	}

	var opened Descriptor
	f.Register(KindDAV, func(_ context.Context, d Descriptor) (storage.Backend, error) {
		opened = d
		return memory.New(), nil
	})
	if _, err := f.Open(ctx, DAV{URL: "http://localhost/"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(DAV{URL: "http://localhost/"}, opened); diff != "" {
		t.Errorf("opener got wrong descriptor (-want +got):\n%s", diff)
	}
}

func TestLocalPathSanitizesNames(t *testing.T) {
	f := NewFactory("/data")
	got := f.LocalPath(Local{Username: "../etc", ApplicationName: "a/b"})
	if want := filepath.Join("/data", "__etc", "a_b.json"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
