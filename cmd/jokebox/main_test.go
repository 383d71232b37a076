package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"giggleglitch/pkg/generator"
	"giggleglitch/pkg/model"
)

func TestWriteVisual(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		visual  generator.Stage[generator.Visual]
		wantErr bool
	}{
		{
			name: "ready",
			visual: generator.Stage[generator.Visual]{
				Status: generator.Ready,
				Value:  generator.Visual{Image: model.ImageRef{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}},
			},
		},
		{
			name:    "failed",
			visual:  generator.Stage[generator.Visual]{Status: generator.Failed, Err: errors.New("boom")},
			wantErr: true,
		},
		{
			name:    "not started",
			visual:  generator.Stage[generator.Visual]{Status: generator.NotStarted},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".png")
			err := writeVisual(generator.State{Visual: tt.visual}, path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("writeVisual() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(data) != 4 {
				t.Errorf("expected 4 bytes, got %d", len(data))
			}
		})
	}
}
