package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"giggleglitch/pkg/db"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"memory", db.MemoryPath},
		{"empty means memory", ""},
		{"file", filepath.Join(t.TempDir(), "nested", "media.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := db.Init(tt.path)
			if err != nil {
				t.Fatalf("Init() failed: %v", err)
			}
			defer d.Close()

			var n int
			if err := d.QueryRow("SELECT count(*) FROM media").Scan(&n); err != nil {
				t.Fatalf("media table missing: %v", err)
			}
			if n != 0 {
				t.Errorf("expected empty media table, got %d rows", n)
			}
		})
	}
}

func TestPruneMedia(t *testing.T) {
	d, err := db.Init(db.MemoryPath)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer d.Close()

	old := time.Now().Add(-2 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	if _, err := d.Exec(`INSERT INTO media (id, mime_type, data, size, created_at) VALUES ('old', 'image/png', x'00', 1, ?)`, old); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Exec(`INSERT INTO media (id, mime_type, data, size) VALUES ('new', 'image/png', x'00', 1)`); err != nil {
		t.Fatal(err)
	}

	n, err := d.PruneMedia(time.Hour)
	if err != nil {
		t.Fatalf("PruneMedia() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned row, got %d", n)
	}

	var left string
	if err := d.QueryRow("SELECT id FROM media").Scan(&left); err != nil {
		t.Fatal(err)
	}
	if left != "new" {
		t.Errorf("expected 'new' to survive, got %q", left)
	}
}
